// Package main contains the cli implementation of the tool. It uses cobra
// package for cli tool implementation.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sqlkit/internal/config"
	"sqlkit/internal/dialect"
	"sqlkit/internal/logging"
	"sqlkit/internal/metrics"

	_ "sqlkit/internal/dialect/mssql"
	_ "sqlkit/internal/dialect/mysql"
	_ "sqlkit/internal/dialect/oracle"
	_ "sqlkit/internal/dialect/postgresql"
	_ "sqlkit/internal/dialect/sqlite"
	_ "sqlkit/internal/introspect/mysql"
	_ "sqlkit/internal/introspect/postgresql"
	_ "sqlkit/internal/introspect/sqlite"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// app is the state shared by all commands once the root command has loaded
// the configuration.
type app struct {
	loader  *config.Loader
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Collector
	noColor bool
}

func (a *app) logger(component string) *logrus.Entry {
	return logging.Component(a.log, component)
}

func (a *app) color() bool {
	return !a.noColor && !color.NoColor
}

// helper resolves the dialect to use. An explicit --dialect wins over the
// dialect named by a schema file, which wins over the configured default.
func (a *app) helper(cmd *cobra.Command, fromFile dialect.Name) (dialect.Helper, error) {
	if fromFile != "" && !cmd.Flags().Changed("dialect") {
		return dialect.Get(fromFile)
	}
	return dialect.Lookup(a.cfg.Dialect)
}

func newRootCmd() *cobra.Command {
	a := &app{loader: config.NewLoader()}

	rootCmd := &cobra.Command{
		Use:           "sqlkit",
		Short:         "Portable SQL schema tool: diff, migrate, extract and apply database schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loader.BindFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := a.loader.Load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log
			a.metrics = metrics.NewCollector("sqlkit")
			if used := a.loader.Used(); used != "" {
				log.WithField("file", used).Debug("loaded config file")
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg == nil || a.cfg.MetricsFile == "" {
				return nil
			}
			if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.metrics.Registry()); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("dsn", "", "Database connection string")
	flags.StringP("dialect", "d", "mysql", "Database dialect (mysql, postgresql, sqlite, mssql, oracle)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringP("format", "f", "sql", "Output format (sql, json, yaml, summary)")
	flags.Int("concurrency", 4, "Number of tables extracted in parallel")
	flags.Duration("timeout", 10*time.Minute, "Timeout for database operations")
	flags.String("metrics-file", "", "Write Prometheus metrics of the run to this file")
	flags.StringVar(&a.loader.ConfigFile, "config", "", "Config file (default .sqlkit.yaml)")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		diffCmd(a),
		migrateCmd(a),
		extractCmd(a),
		ddlCmd(a),
		syncCmd(a),
		createCmd(a),
		dropCmd(a),
		truncateCmd(a),
		applyCmd(a),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
