package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqlkit/internal/apply"
	"sqlkit/internal/dialect"
	"sqlkit/internal/migration"
)

func applyCmd(a *app) *cobra.Command {
	var options apply.Options

	cmd := &cobra.Command{
		Use:   "apply <migration>",
		Short: "Apply a migration to a database",
		Long: `Apply runs a migration against the database named by --dsn. The migration
is a SQL file, a json migration written by "migrate --format json", or a
migration directory written by "migrate --dir".

Preflight checks run first: destructive statements require --unsafe and
statements that cannot run inside a transaction require
--allow-non-transactional when --transaction is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			h, err := dialect.Lookup(a.cfg.Dialect)
			if err != nil {
				return err
			}
			options.DSN = a.cfg.DSN
			options.Out = cmd.OutOrStdout()
			options.In = cmd.InOrStdin()
			applier := apply.NewApplier(h, options,
				apply.WithLogger(a.logger("apply")), apply.WithMetrics(a.metrics))
			defer applier.Close()

			statements, err := readMigration(applier, args[0])
			if err != nil {
				return err
			}
			if len(statements) == 0 {
				return fmt.Errorf("no statements found in %s", args[0])
			}

			if !options.DryRun {
				if options.DSN == "" {
					return fmt.Errorf("no database configured; pass --dsn or set SQLKIT_DSN")
				}
				if err := applier.Connect(ctx); err != nil {
					return err
				}
			}
			return applier.Apply(ctx, statements, applier.PreflightChecks(statements, options.Unsafe))
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&options.DryRun, "dry-run", false, "Run the preflight checks and print the statements only")
	flags.BoolVar(&options.Transaction, "transaction", false, "Run all statements in one transaction")
	flags.BoolVar(&options.AllowNonTransactional, "allow-non-transactional", false, "Run sequentially when statements cannot be wrapped in a transaction")
	flags.BoolVarP(&options.Unsafe, "unsafe", "u", false, "Allow destructive statements")
	flags.BoolVarP(&options.SkipConfirmation, "yes", "y", false, "Do not ask for confirmation")
	flags.IntVar(&options.ConnectRetries, "connect-retries", 0, "Ping retries while the database is starting (negative disables)")
	return cmd
}

// readMigration loads the statements of a migration file or directory.
func readMigration(applier *apply.Applier, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration: %w", err)
	}
	if info.IsDir() {
		return migration.ReadDir(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration: %w", err)
	}
	return applier.ParseStatements(string(content)), nil
}
