package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sqlkit/internal/compile"
	"sqlkit/internal/diff"
	"sqlkit/internal/migration"
	"sqlkit/internal/output"
	"sqlkit/internal/parser"
)

// writeOutput prints content or saves it to path.
func writeOutput(cmd *cobra.Command, path, content string) error {
	if path == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Output saved to %s\n", path)
	return nil
}

func parsePair(oldPath, newPath string) (*parser.Document, *parser.Document, error) {
	oldDoc, err := parser.ParseFile(oldPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse old schema: %w", err)
	}
	newDoc, err := parser.ParseFile(newPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse new schema: %w", err)
	}
	return oldDoc, newDoc, nil
}

func diffCmd(a *app) *cobra.Command {
	var outFile string
	var renames bool

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two schema files",
		Long: `Diff compares two schema files and reports added, removed and modified
tables, columns, indexes and foreign keys. Schema files may be MySQL dumps
(.sql), TOML, YAML or JSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldDoc, newDoc, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			h, err := a.helper(cmd, newDoc.Dialect)
			if err != nil {
				return err
			}
			d := diff.Diff(oldDoc.Schema, newDoc.Schema, diff.Options{DetectColumnRenames: renames, Helper: h})

			f, err := output.NewFormatter(a.cfg.Format, output.WithColor(outFile == "" && a.color()))
			if err != nil {
				return err
			}
			text, err := f.FormatDiff(d)
			if err != nil {
				return err
			}
			return writeOutput(cmd, outFile, text)
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file for the diff")
	cmd.Flags().BoolVar(&renames, "detect-renames", false, "Report removed and added columns of equal type as renames")
	return cmd
}

func migrateCmd(a *app) *cobra.Command {
	var (
		outFile      string
		rollbackFile string
		dir          string
		name         string
		unsafe       bool
		renames      bool
	)

	cmd := &cobra.Command{
		Use:   "migrate <old> <new>",
		Short: "Generate the migration from an old schema to a new one",
		Long: `Migrate generates the statements that transition a database from the old
schema to the new schema, together with rollback statements. Destructive
changes are skipped and reported unless --unsafe is given.

With --dir the migration is written as a versioned up/down pair into a
migration directory with a checksum file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldDoc, newDoc, err := parsePair(args[0], args[1])
			if err != nil {
				return err
			}
			h, err := a.helper(cmd, newDoc.Dialect)
			if err != nil {
				return err
			}
			log := a.logger("migrate").WithField("dialect", h.Name())

			c := compile.New(h, compile.WithLogger(log), compile.WithMetrics(a.metrics))
			gen := migration.NewGenerator(c, migration.WithLogger(log), migration.WithMetrics(a.metrics))
			opts := migration.DefaultOptions()
			opts.IncludeUnsafe = unsafe
			opts.DetectRenames = renames
			d, m := gen.Plan(oldDoc.Schema, newDoc.Schema, opts)
			log.WithField("statements", len(m.SQLStatements())).Info("migration planned")

			if dir != "" {
				files, err := migration.WriteDir(dir, name, m, time.Now())
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", f)
				}
				return nil
			}

			if a.cfg.Format == "summary" && outFile == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Detected changes between schemas (old: %d tables, new: %d tables, %d modified)\n",
					len(oldDoc.Schema.Tables), len(newDoc.Schema.Tables), len(d.ModifiedTables))
			}
			f, err := output.NewFormatter(a.cfg.Format, output.WithColor(outFile == "" && a.color()))
			if err != nil {
				return err
			}
			text, err := f.FormatMigration(m)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, outFile, text); err != nil {
				return err
			}
			if rollbackFile == "" {
				return nil
			}
			if err := writeOutput(cmd, rollbackFile, output.FormatRollbackSQL(m)); err != nil {
				return fmt.Errorf("failed to write rollback output: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Output file for the generated migration")
	cmd.Flags().StringVar(&rollbackFile, "rollback-output", "", "Output file for the rollback SQL (run separately)")
	cmd.Flags().StringVar(&dir, "dir", "", "Write the migration into this migration directory")
	cmd.Flags().StringVar(&name, "name", "", "Name of the migration written with --dir")
	cmd.Flags().BoolVarP(&unsafe, "unsafe", "u", false, "Drop removed tables and columns (may lose data); safe mode by default")
	cmd.Flags().BoolVar(&renames, "detect-renames", false, "Turn removed and added columns of equal type into renames")
	return cmd
}
