package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sqlkit/internal/apply"
	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/introspect"
	"sqlkit/internal/output"
	"sqlkit/internal/parser"
	"sqlkit/internal/reconcile"
)

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), a.cfg.Timeout)
}

// connect opens the configured database and waits for it to answer.
func (a *app) connect(ctx context.Context, h dialect.Helper) (*sql.DB, error) {
	if strings.TrimSpace(a.cfg.DSN) == "" {
		return nil, errors.New("no database configured; pass --dsn or set SQLKIT_DSN")
	}
	applier := apply.NewApplier(h, apply.Options{DSN: a.cfg.DSN}, apply.WithLogger(a.logger("connect")))
	if err := applier.Connect(ctx); err != nil {
		return nil, err
	}
	return applier.DB(), nil
}

// schemaUtils parses the schema file and connects the reconcile utilities
// to the configured database.
func (a *app) schemaUtils(ctx context.Context, cmd *cobra.Command, path string) (*reconcile.Utils, *core.Schema, func(), error) {
	doc, err := parser.ParseFile(path)
	if err != nil {
		return nil, nil, nil, err
	}
	h, err := a.helper(cmd, doc.Dialect)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := a.connect(ctx, h)
	if err != nil {
		return nil, nil, nil, err
	}
	u, err := reconcile.New(db, h,
		reconcile.WithLogger(a.logger("reconcile")),
		reconcile.WithMetrics(a.metrics),
		reconcile.WithConcurrency(a.cfg.Concurrency),
		reconcile.WithOutput(cmd.OutOrStdout()),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return u, doc.Schema, func() { _ = db.Close() }, nil
}

func extractCmd(a *app) *cobra.Command {
	var (
		outFile string
		as      string
		tables  []string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Read the schema of a live database",
		Long: `Extract reads tables, columns, keys, indexes and foreign keys from the
database named by --dsn and writes them as a schema file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			h, err := dialect.Lookup(a.cfg.Dialect)
			if err != nil {
				return err
			}
			extractor, err := introspect.NewExtractor(h.Name(),
				introspect.WithLogger(a.logger("extract")), introspect.WithMetrics(a.metrics))
			if err != nil {
				return err
			}
			db, err := a.connect(ctx, h)
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := extractor.Extract(ctx, db, introspect.Options{Tables: tables, Concurrency: a.cfg.Concurrency})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := parser.Write(w, as, &parser.Document{Schema: s, Dialect: h.Name()}); err != nil {
				return err
			}
			if outFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d tables to %s\n", len(s.Tables), outFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file for the schema")
	cmd.Flags().StringVar(&as, "as", "toml", "Schema format ("+strings.Join(parser.Formats, ", ")+")")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "Only extract these tables")
	return cmd
}

func ddlCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ddl <schema>",
		Short: "Print the statements creating a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := parser.ParseFile(args[0])
			if err != nil {
				return err
			}
			h, err := a.helper(cmd, doc.Dialect)
			if err != nil {
				return err
			}
			u, err := reconcile.New(nil, h, reconcile.WithLogger(a.logger("ddl")), reconcile.WithMetrics(a.metrics))
			if err != nil {
				return err
			}
			stmts, err := u.CreateTablesSQL(doc.Schema)
			if err != nil {
				return err
			}
			var sb strings.Builder
			for _, stmt := range stmts {
				sb.WriteString(stmt)
				sb.WriteString(";\n")
			}
			return writeOutput(cmd, "", sb.String())
		},
	}
}

func syncCmd(a *app) *cobra.Command {
	var opts reconcile.Options

	cmd := &cobra.Command{
		Use:   "sync <schema>",
		Short: "Bring a live database in line with a schema file",
		Long: `Sync extracts the current schema of the database, compares it with the
schema file and applies the resulting migration. Only the tables named by
the schema file are touched unless --drop-unknown is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			u, target, closeDB, err := a.schemaUtils(ctx, cmd, args[0])
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := u.Reconcile(ctx, target, opts)
			if res != nil && (opts.DryRun || errors.Is(err, reconcile.ErrUnresolved)) {
				f, ferr := output.NewFormatter(a.cfg.Format, output.WithColor(a.color()))
				if ferr != nil {
					return ferr
				}
				text, ferr := f.FormatMigration(res.Migration)
				if ferr != nil {
					return ferr
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
			}
			if err != nil {
				return err
			}
			if !opts.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d statements.\n", res.Applied)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print the migration without applying it")
	cmd.Flags().BoolVar(&opts.DropUnknown, "drop-unknown", false, "Also compare tables missing from the schema file")
	cmd.Flags().BoolVarP(&opts.IncludeUnsafe, "unsafe", "u", false, "Drop removed tables and columns")
	cmd.Flags().BoolVar(&opts.DetectRenames, "detect-renames", false, "Turn removed and added columns of equal type into renames")
	return cmd
}

func createCmd(a *app) *cobra.Command {
	var recreate bool

	cmd := &cobra.Command{
		Use:   "create <schema>",
		Short: "Create the tables of a schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			u, s, closeDB, err := a.schemaUtils(ctx, cmd, args[0])
			if err != nil {
				return err
			}
			defer closeDB()
			if recreate {
				return u.RecreateTables(ctx, s)
			}
			return u.CreateTables(ctx, s)
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "Drop existing tables first")
	return cmd
}

func dropCmd(a *app) *cobra.Command {
	var ifExists bool

	cmd := &cobra.Command{
		Use:   "drop <schema>",
		Short: "Drop the tables of a schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			u, s, closeDB, err := a.schemaUtils(ctx, cmd, args[0])
			if err != nil {
				return err
			}
			defer closeDB()
			return u.DropTables(ctx, s, ifExists)
		},
	}
	cmd.Flags().BoolVar(&ifExists, "if-exists", false, "Skip tables that do not exist")
	return cmd
}

func truncateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "truncate <schema>",
		Short: "Remove all rows from the tables of a schema file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			u, s, closeDB, err := a.schemaUtils(ctx, cmd, args[0])
			if err != nil {
				return err
			}
			defer closeDB()
			return u.TruncateTables(ctx, s)
		},
	}
}
