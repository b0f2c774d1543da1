// Package reconcile creates, drops and empties the tables of a schema model
// on a live database, and brings a database in line with a target schema by
// extracting, diffing and migrating it.
package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"sqlkit/internal/apply"
	"sqlkit/internal/compile"
	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/diff"
	"sqlkit/internal/introspect"
	"sqlkit/internal/logging"
	"sqlkit/internal/metrics"
	"sqlkit/internal/migration"
	"sqlkit/internal/query"
)

const cacheSize = 256

// ErrUnresolved is returned when the migration contains changes the
// database cannot express.
var ErrUnresolved = errors.New("migration has unresolved changes")

// Options control Reconcile.
type Options struct {
	// DryRun plans the migration without executing it.
	DryRun bool
	// DropUnknown compares against every table of the database, so tables
	// missing from the target are removed.
	DropUnknown bool
	// IncludeUnsafe drops removed tables and columns instead of keeping them.
	IncludeUnsafe bool
	// DetectRenames pairs removed and added columns into renames.
	DetectRenames bool
}

// Result is the outcome of Reconcile.
type Result struct {
	Diff      *diff.SchemaDiff
	Migration *migration.Migration
	// Applied is the number of executed statements.
	Applied int
}

// Option configures Utils.
type Option func(*Utils)

func WithLogger(entry *logrus.Entry) Option {
	return func(u *Utils) { u.log = entry }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(u *Utils) { u.metrics = m }
}

// WithConcurrency bounds the tables extracted in parallel.
func WithConcurrency(n int) Option {
	return func(u *Utils) { u.concurrency = n }
}

// WithOutput receives the progress report of executed statements.
func WithOutput(w io.Writer) Option {
	return func(u *Utils) { u.out = w }
}

// Utils runs schema level operations on one database.
type Utils struct {
	db        *sql.DB
	helper    dialect.Helper
	compiler  *compile.Compiler
	cache     *compile.Cache
	extractor *introspect.Extractor
	generator *migration.Generator
	log       *logrus.Entry
	metrics   *metrics.Collector
	out       io.Writer

	// extractErr is set when the dialect has no schema extraction. Only the
	// operations reading the live schema fail then.
	extractErr  error
	concurrency int
}

// New creates Utils for db. Operations reading the live schema need a
// schema extractor registered for the dialect of h.
func New(db *sql.DB, h dialect.Helper, opts ...Option) (*Utils, error) {
	u := &Utils{db: db, helper: h, out: io.Discard}
	for _, opt := range opts {
		opt(u)
	}
	u.log = logging.OrDiscard(u.log, "reconcile").WithField("dialect", string(h.Name()))

	u.compiler = compile.New(h, compile.WithLogger(u.log), compile.WithMetrics(u.metrics))
	cache, err := compile.NewCache(u.compiler, cacheSize)
	if err != nil {
		return nil, err
	}
	u.cache = cache
	u.extractor, u.extractErr = introspect.NewExtractor(h.Name(), introspect.WithLogger(u.log), introspect.WithMetrics(u.metrics))
	u.generator = migration.NewGenerator(u.compiler, migration.WithLogger(u.log), migration.WithMetrics(u.metrics))
	return u, nil
}

// run executes statements, inside one transaction when the dialect supports
// transactional DDL.
func (u *Utils) run(ctx context.Context, stmts []string) error {
	if len(stmts) == 0 {
		return nil
	}
	applier := apply.NewApplier(u.helper, apply.Options{
		Transaction:           true,
		AllowNonTransactional: true,
		Unsafe:                true,
		SkipConfirmation:      true,
		Out:                   u.out,
	}, apply.WithLogger(u.log), apply.WithMetrics(u.metrics))
	applier.UseDB(u.db)
	return applier.Apply(ctx, stmts, applier.PreflightChecks(stmts, true))
}

func (u *Utils) extract(ctx context.Context, opts introspect.Options) (*core.Schema, error) {
	if u.extractErr != nil {
		return nil, u.extractErr
	}
	opts.Concurrency = u.concurrency
	return u.extractor.Extract(ctx, u.db, opts)
}

func (u *Utils) compile(stmt query.Statement) ([]string, error) {
	compiled, err := u.compiler.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return compiled.Batch(), nil
}

func (u *Utils) cached(key string, build func() query.Statement) ([]string, error) {
	compiled, err := u.cache.Get(key, build)
	if err != nil {
		return nil, err
	}
	return compiled.Batch(), nil
}

// CreateTablesSQL returns the statements creating every table of s with
// its indexes and foreign keys. Referenced tables come first.
func (u *Utils) CreateTablesSQL(s *core.Schema) ([]string, error) {
	var stmts []string
	tables := s.TopologicalTables()
	for _, t := range tables {
		batch, err := u.compile(query.CreateTable(t))
		if err != nil {
			return nil, fmt.Errorf("create table %s: %w", t.Name, err)
		}
		stmts = append(stmts, batch...)
	}
	if !u.helper.Capabilities().AlterConstraints {
		return stmts, nil
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			batch, err := u.compile(query.AlterTable(t).AddForeignKey(namedFK(u.helper, t, fk)))
			if err != nil {
				return nil, fmt.Errorf("add foreign key to %s: %w", t.Name, err)
			}
			stmts = append(stmts, batch...)
		}
	}
	return stmts, nil
}

// CreateTables creates every table of s.
func (u *Utils) CreateTables(ctx context.Context, s *core.Schema) error {
	stmts, err := u.CreateTablesSQL(s)
	if err != nil {
		return err
	}
	u.log.WithField("tables", len(s.Tables)).Info("creating tables")
	return u.run(ctx, stmts)
}

// DropTables drops every table of s, foreign keys first. With ifExists
// missing tables are skipped and only foreign keys found in the database
// are dropped.
func (u *Utils) DropTables(ctx context.Context, s *core.Schema, ifExists bool) error {
	if ifExists && !u.helper.Capabilities().IfExists {
		return dialect.Unsupported(u.helper.Name(), "DROP TABLE IF EXISTS", "")
	}

	fkSource := s
	if ifExists && u.helper.Capabilities().AlterConstraints {
		live, err := u.extract(ctx, introspect.Options{Tables: tableNames(s)})
		if err != nil {
			return err
		}
		fkSource = live
	}

	var stmts []string
	if u.helper.Capabilities().AlterConstraints {
		for _, t := range fkSource.Tables {
			for _, fk := range t.ForeignKeys {
				batch, err := u.compile(query.AlterTable(t).DropForeignKey(namedFK(u.helper, t, fk)))
				if err != nil {
					return fmt.Errorf("drop foreign key of %s: %w", t.Name, err)
				}
				stmts = append(stmts, batch...)
			}
		}
	}

	tables := s.TopologicalTables()
	for i := len(tables) - 1; i >= 0; i-- {
		name := tables[i].Name
		batch, err := u.cached(fmt.Sprintf("drop:%t:%s", ifExists, name), func() query.Statement {
			return &query.DropTableStmt{Name: name, IfExists: ifExists}
		})
		if err != nil {
			return err
		}
		stmts = append(stmts, batch...)
	}
	u.log.WithField("tables", len(tables)).Info("dropping tables")
	return u.run(ctx, stmts)
}

// RecreateTables drops the tables of s when they exist and creates them again.
func (u *Utils) RecreateTables(ctx context.Context, s *core.Schema) error {
	if err := u.DropTables(ctx, s, true); err != nil {
		return err
	}
	return u.CreateTables(ctx, s)
}

// TruncateTables removes all rows of the tables of s. The tables are handed
// to the dialect as one set, referencing tables first, so that foreign keys
// between them do not block the statement.
func (u *Utils) TruncateTables(ctx context.Context, s *core.Schema) error {
	tables := s.TopologicalTables()
	if len(tables) == 0 {
		return nil
	}
	names := make([]string, 0, len(tables))
	for i := len(tables) - 1; i >= 0; i-- {
		names = append(names, tables[i].Name)
	}
	stmts, err := u.cached("truncate:"+strings.Join(names, ","), func() query.Statement { return query.Truncate(names...) })
	if err != nil {
		return err
	}
	u.log.WithField("tables", len(names)).Info("truncating tables")
	return u.run(ctx, stmts)
}

// Reconcile migrates the database to target. Without DropUnknown only the
// tables named by target are compared.
func (u *Utils) Reconcile(ctx context.Context, target *core.Schema, opts Options) (*Result, error) {
	var introOpts introspect.Options
	if !opts.DropUnknown {
		introOpts.Tables = tableNames(target)
	}
	current, err := u.extract(ctx, introOpts)
	if err != nil {
		return nil, err
	}
	if !opts.DropUnknown {
		current = onlyTables(current, target)
	}

	d, m := u.generator.Plan(current, target, migration.Options{
		IncludeUnsafe: opts.IncludeUnsafe,
		DetectRenames: opts.DetectRenames,
	})
	result := &Result{Diff: d, Migration: m}
	log := u.log.WithFields(logrus.Fields{"statements": len(m.SQLStatements()), "dry_run": opts.DryRun})

	if unresolved := m.UnresolvedNotes(); len(unresolved) > 0 {
		log.WithField("unresolved", len(unresolved)).Warn("migration has unresolved changes")
		if !opts.DryRun {
			return result, fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(unresolved, "; "))
		}
	}
	if opts.DryRun || m.IsEmpty() {
		log.Info("reconcile planned")
		return result, nil
	}

	stmts := m.SQLStatements()
	if err := u.run(ctx, stmts); err != nil {
		var execErr *apply.ExecError
		if errors.As(err, &execErr) && !execErr.RolledBack {
			result.Applied = execErr.Applied
		}
		return result, err
	}
	result.Applied = len(stmts)
	log.Info("reconcile applied")
	return result, nil
}

func tableNames(s *core.Schema) []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// onlyTables drops tables of live that target does not name. Extraction
// already filters, this keeps custom introspecters honest.
func onlyTables(live, target *core.Schema) *core.Schema {
	out := &core.Schema{Name: live.Name}
	for _, t := range live.Tables {
		if target.FindTable(t.Name) != nil {
			out.Tables = append(out.Tables, t)
		}
	}
	return out
}

func namedFK(h dialect.Helper, t *core.Table, fk *core.ForeignKey) *core.ForeignKey {
	if strings.TrimSpace(fk.Name) != "" {
		return fk
	}
	named := *fk
	named.Name = dialect.ConstraintName(h, "fk", t.Name, fk.Columns)
	return &named
}
