package migration

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"sqlkit/internal/compile"
	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/diff"
	"sqlkit/internal/logging"
	"sqlkit/internal/metrics"
	"sqlkit/internal/query"
)

// Options control migration generation.
type Options struct {
	// IncludeUnsafe drops removed tables and columns. Without it removed
	// tables are renamed to a backup name and removed columns are kept.
	IncludeUnsafe bool
	// DetectRenames pairs removed and added columns into renames when
	// comparing schemas.
	DetectRenames bool
}

// DefaultOptions generate a safe migration.
func DefaultOptions() Options {
	return Options{DetectRenames: true}
}

// Generator builds migrations for the dialect of its compiler. Every change
// is expressed as a query DDL statement and compiled, so dialect specifics
// stay in the dialect helpers.
type Generator struct {
	compiler *compile.Compiler
	log      *logrus.Entry
	metrics  *metrics.Collector
}

// Option configures a Generator.
type Option func(*Generator)

func WithLogger(entry *logrus.Entry) Option {
	return func(g *Generator) { g.log = entry }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator creates a generator rendering through c.
func NewGenerator(c *compile.Compiler, opts ...Option) *Generator {
	g := &Generator{compiler: c}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logging.OrDiscard(g.log, "migration").WithField("dialect", string(c.Helper().Name()))
	return g
}

// DiffOptions compare columns by their rendered type and skip comments on
// databases that cannot store them.
func (g *Generator) DiffOptions(opts Options) diff.Options {
	h := g.compiler.Helper()
	return diff.Options{
		DetectColumnRenames: opts.DetectRenames,
		Helper:              h,
		IgnoreComments:      !dialect.StoresComments(h),
	}
}

// Plan compares two schemas and generates the migration from current to target.
func (g *Generator) Plan(current, target *core.Schema, opts Options) (*diff.SchemaDiff, *Migration) {
	d := diff.Diff(current, target, g.DiffOptions(opts))
	return d, g.Generate(d, opts)
}

// Generate builds the migration for d. Changes the dialect cannot express
// become unresolved operations instead of failing the whole migration.
func (g *Generator) Generate(d *diff.SchemaDiff, opts Options) *Migration {
	h := g.compiler.Helper()
	b := &builder{
		g:       g,
		h:       h,
		m:       &Migration{Dialect: string(h.Name())},
		opts:    opts,
		diffOps: g.DiffOptions(opts),
		risks:   make(map[string]diff.ChangeSeverity),
	}
	if d == nil || d.IsEmpty() {
		return b.m
	}

	b.analyze(d)
	if !opts.IncludeUnsafe && (len(d.RemovedTables) > 0 || hasRemovedColumns(d)) {
		b.m.AddNote(fmt.Sprintf("Safe mode: removed tables are renamed to <name>%s<hash> and removed columns are kept, so no data is lost.", dialect.BackupSuffix))
	}

	b.createTables(d.AddedTables)
	for _, td := range d.ModifiedTables {
		b.dropConstraints(td)
	}
	for _, td := range d.ModifiedTables {
		b.alterColumns(td)
	}
	for _, td := range d.ModifiedTables {
		b.addConstraints(td)
	}
	b.addForeignKeys()
	b.removeTables(d.RemovedTables)

	if b.locking && !h.Capabilities().TransactionalDDL {
		b.m.AddNote(fmt.Sprintf("Lock-time warning: ALTER TABLE and index changes may lock or rebuild tables, and %s cannot roll back DDL; run large changes off-peak.", h.Name()))
	}

	b.m.Dedupe()
	for _, op := range b.m.Operations {
		g.metrics.RecordMigrationOperation(string(h.Name()), string(op.Kind))
	}
	g.log.WithFields(logrus.Fields{
		"operations": len(b.m.Operations),
		"unresolved": b.m.Count(core.OperationUnresolved),
	}).Debug("migration generated")
	return b.m
}

func hasRemovedColumns(d *diff.SchemaDiff) bool {
	for _, td := range d.ModifiedTables {
		if len(td.RemovedColumns) > 0 {
			return true
		}
	}
	return false
}

type pendingFK struct {
	table *core.Table
	fk    *core.ForeignKey
}

// builder holds the state of one Generate call.
type builder struct {
	g       *Generator
	h       dialect.Helper
	m       *Migration
	opts    Options
	diffOps diff.Options
	risks   map[string]diff.ChangeSeverity
	pending []pendingFK
	locking bool
}

func riskKey(table, object string) string {
	return strings.ToLower(table) + "\x00" + strings.ToLower(object)
}

// analyze records breaking changes as notes and remembers the severity per
// object for the risk of the generated operations.
func (b *builder) analyze(d *diff.SchemaDiff) {
	for _, bc := range diff.NewBreakingChangeAnalyzer().Analyze(d) {
		key := riskKey(bc.Table, bc.Object)
		if prev, ok := b.risks[key]; !ok || bc.Severity > prev {
			b.risks[key] = bc.Severity
		}
		switch bc.Severity {
		case diff.SeverityCritical, diff.SeverityBreaking:
			b.m.AddBreaking(fmt.Sprintf("[%s] %s.%s: %s", bc.Severity, bc.Table, bc.Object, bc.Description))
		case diff.SeverityWarning:
			b.m.AddNote(fmt.Sprintf("[WARNING] %s.%s: %s", bc.Table, bc.Object, bc.Description))
		case diff.SeverityInfo:
		}
		for _, rec := range recommendations(bc) {
			b.m.AddNote(rec)
		}
	}
}

func (b *builder) risk(table, object string) core.OperationRisk {
	if sev, ok := b.risks[riskKey(table, object)]; ok {
		return sev.Risk()
	}
	return core.RiskInfo
}

// step compiles up and down and appends the forward statements. The whole
// rollback batch is attached to the first of them.
func (b *builder) step(table, object, what string, up, down query.Statement, lock bool) bool {
	upSQL, err := b.compile(up)
	if err != nil {
		b.m.AddUnresolved(table, fmt.Sprintf("%s: %v", what, err))
		return false
	}
	var rollback string
	if down != nil {
		downSQL, err := b.compile(down)
		if err != nil {
			b.m.AddNote(fmt.Sprintf("No rollback for %s: %v", what, err))
		}
		rollback = strings.Join(downSQL, ";\n")
	}
	risk := b.risk(table, object)
	for i, stmt := range upSQL {
		op := core.Operation{Kind: core.OperationSQL, SQL: stmt, Table: table, Risk: risk, RequiresLock: lock}
		if i == 0 {
			op.RollbackSQL = rollback
		}
		b.m.AddOperation(op)
	}
	b.locking = b.locking || lock
	return true
}

func (b *builder) compile(stmt query.Statement) ([]string, error) {
	compiled, err := b.g.compiler.Compile(stmt)
	if err != nil {
		return nil, err
	}
	return compiled.Batch(), nil
}

// createTables creates added tables so that referenced tables come first.
// Foreign keys are added after all tables exist, unless the dialect can only
// declare them inline.
func (b *builder) createTables(tables []*core.Table) {
	if len(tables) == 0 {
		return
	}
	ordered := (&core.Schema{Tables: tables}).TopologicalTables()
	for _, t := range ordered {
		b.step(t.Name, t.Name, "create table "+t.Name, query.CreateTable(t), query.DropTable(t.Name), false)
		if b.h.Capabilities().AlterConstraints {
			for _, fk := range t.ForeignKeys {
				b.pending = append(b.pending, pendingFK{table: t, fk: fk})
			}
		}
	}
}

// dropConstraints removes foreign keys, indexes and the primary key that
// are removed or rebuilt, before columns change underneath them.
func (b *builder) dropConstraints(td *diff.TableDiff) {
	for _, fk := range td.RemovedForeignKeys {
		fk = b.namedFK(td.Old, fk)
		b.step(td.Name, fk.Name, fmt.Sprintf("drop foreign key %s.%s", td.Name, fk.Name),
			query.AlterTable(td.Old).DropForeignKey(fk), query.AlterTable(td.Old).AddForeignKey(fk), true)
	}
	var dropped []*core.Index
	dropped = append(dropped, td.RemovedIndexes...)
	for _, ch := range td.ModifiedIndexes {
		dropped = append(dropped, ch.Old)
	}
	for _, idx := range dropped {
		b.step(td.Name, idx.Name, fmt.Sprintf("drop index %s.%s", td.Name, idx.Name),
			query.DropIndex(td.Name, idx), query.CreateIndex(td.Name, idx), true)
	}
	if pk := td.PrimaryKey; pk != nil && pk.Old != nil {
		old := b.namedPK(td.Name, pk.Old)
		b.step(td.Name, old.Name, "drop primary key of "+td.Name,
			query.AlterTable(td.Old).DropPrimaryKey(old), query.AlterTable(td.Old).AddPrimaryKey(old), true)
	}
}

func (b *builder) alterColumns(td *diff.TableDiff) {
	for _, r := range td.RenamedColumns {
		b.step(td.Name, r.Old.Name+"->"+r.New.Name, fmt.Sprintf("rename column %s.%s to %s", td.Name, r.Old.Name, r.New.Name),
			query.AlterTable(td.Old).RenameColumn(r.Old.Name, r.New.Name),
			query.AlterTable(td.New).RenameColumn(r.New.Name, r.Old.Name), true)
		if diff.EqualColumns(r.Old, r.New, b.diffOps) {
			continue
		}
		from := *r.Old
		from.Name = r.New.Name
		b.modifyColumn(td, &from, r.New)
	}

	for _, c := range td.AddedColumns {
		b.step(td.Name, c.Name, fmt.Sprintf("add column %s.%s", td.Name, c.Name),
			query.AlterTable(td.New).AddColumn(c), query.AlterTable(td.New).DropColumn(c.Name), true)
	}

	for _, ch := range td.ModifiedColumns {
		b.modifyColumn(td, ch.Old, ch.New)
	}

	for _, c := range td.RemovedColumns {
		if !b.opts.IncludeUnsafe {
			b.m.AddNote(fmt.Sprintf("Safe mode: column %s.%s is kept; drop it manually or generate an unsafe migration.", td.Name, c.Name))
			if c.Mandatory && c.DefaultValue == nil {
				b.m.AddNote(fmt.Sprintf("Column %s.%s is NOT NULL without default; inserts that omit it will fail.", td.Name, c.Name))
			}
			continue
		}
		if b.step(td.Name, c.Name, fmt.Sprintf("drop column %s.%s", td.Name, c.Name),
			query.AlterTable(td.Old).DropColumn(c.Name), query.AlterTable(td.Old).AddColumn(c), true) {
			b.m.AddNote(fmt.Sprintf("Rollback re-adds %s.%s empty; restore its data from a backup.", td.Name, c.Name))
		}
	}
}

func (b *builder) modifyColumn(td *diff.TableDiff, from, to *core.Column) {
	b.step(td.Name, to.Name, fmt.Sprintf("modify column %s.%s", td.Name, to.Name),
		query.AlterTable(td.Old).ModifyColumn(from, to), query.AlterTable(td.New).ModifyColumn(to, from), true)
}

// addConstraints re-adds the primary key and indexes and applies table options.
func (b *builder) addConstraints(td *diff.TableDiff) {
	if pk := td.PrimaryKey; pk != nil && pk.New != nil {
		pkNew := b.namedPK(td.Name, pk.New)
		b.step(td.Name, pkNew.Name, "add primary key to "+td.Name,
			query.AlterTable(td.New).AddPrimaryKey(pkNew), query.AlterTable(td.New).DropPrimaryKey(pkNew), true)
	}

	var created []*core.Index
	for _, ch := range td.ModifiedIndexes {
		created = append(created, ch.New)
	}
	created = append(created, td.AddedIndexes...)
	for _, idx := range created {
		b.step(td.Name, idx.Name, fmt.Sprintf("create index %s.%s", td.Name, idx.Name),
			query.CreateIndex(td.Name, idx), query.DropIndex(td.Name, idx), true)
	}

	for _, fk := range td.AddedForeignKeys {
		b.pending = append(b.pending, pendingFK{table: td.New, fk: fk})
	}

	for _, opt := range td.ModifiedOptions {
		up, down := query.AlterTable(td.New), query.AlterTable(td.New)
		switch opt.Name {
		case "COMMENT":
			up.SetComment(opt.New)
			down.SetComment(opt.Old)
		case "ENGINE":
			up.SetEngine(opt.New)
			down.SetEngine(opt.Old)
		default:
			continue
		}
		b.step(td.Name, td.Name, fmt.Sprintf("change %s of %s", strings.ToLower(opt.Name), td.Name), up, down, opt.Name == "ENGINE")
	}
}

func (b *builder) addForeignKeys() {
	if len(b.pending) == 0 {
		return
	}
	b.m.AddNote("Foreign keys are added after table creation to avoid dependency issues.")
	for _, p := range b.pending {
		fk := b.namedFK(p.table, p.fk)
		b.step(p.table.Name, fk.Name, fmt.Sprintf("add foreign key %s.%s", p.table.Name, fk.Name),
			query.AlterTable(p.table).AddForeignKey(fk), query.AlterTable(p.table).DropForeignKey(fk), true)
	}
}

// removeTables drops or, in safe mode, renames removed tables, referencing
// tables first.
func (b *builder) removeTables(tables []*core.Table) {
	if len(tables) == 0 {
		return
	}
	ordered := (&core.Schema{Tables: tables}).TopologicalTables()
	for i := len(ordered) - 1; i >= 0; i-- {
		t := ordered[i]
		if b.opts.IncludeUnsafe {
			if b.step(t.Name, t.Name, "drop table "+t.Name, query.DropTable(t.Name), query.CreateTable(t), false) {
				b.m.AddNote(fmt.Sprintf("Rollback recreates %s empty; restore its data from a backup.", t.Name))
			}
			continue
		}
		backup := dialect.BackupName(b.h, t.Name)
		b.step(t.Name, t.Name, fmt.Sprintf("rename table %s to %s", t.Name, backup),
			query.RenameTable(t.Name, backup), query.RenameTable(backup, t.Name), true)
	}
}

// namedFK returns fk with a name; databases need one to drop it later.
func (b *builder) namedFK(t *core.Table, fk *core.ForeignKey) *core.ForeignKey {
	if strings.TrimSpace(fk.Name) != "" {
		return fk
	}
	named := *fk
	named.Name = dialect.ConstraintName(b.h, "fk", t.Name, fk.Columns)
	return &named
}

func (b *builder) namedPK(table string, pk *core.PrimaryKey) *core.PrimaryKey {
	if strings.TrimSpace(pk.Name) != "" {
		return pk
	}
	return &core.PrimaryKey{Name: dialect.ConstraintName(b.h, "pk", table, nil), Columns: pk.Columns}
}

// recommendations adds data migration tips for findings that need manual work.
func recommendations(bc diff.BreakingChange) []string {
	msg := strings.ToLower(bc.Description)
	var out []string

	switch {
	case strings.Contains(msg, "column rename detected"):
		out = append(out, fmt.Sprintf("Data migration tip: update queries and views that use the old name of %s.%s.", bc.Table, bc.Object))
	case strings.Contains(msg, "becomes not null"):
		out = append(out, fmt.Sprintf("Data migration tip: backfill %s.%s (UPDATE NULLs) before enforcing NOT NULL.", bc.Table, bc.Object))
	case strings.Contains(msg, "adding not null column without default"):
		out = append(out, fmt.Sprintf("Data migration tip: add %s.%s as NULL first, backfill, then make it NOT NULL.", bc.Table, bc.Object))
	case strings.Contains(msg, "type changes") && bc.Severity >= diff.SeverityBreaking:
		out = append(out, fmt.Sprintf("Data migration tip: validate cast/backfill for %s.%s before applying the type change.", bc.Table, bc.Object))
	case strings.Contains(msg, "size shrinks"):
		out = append(out, fmt.Sprintf("Data migration tip: check the longest value in %s.%s before shrinking it.", bc.Table, bc.Object))
	case strings.Contains(msg, "table will be dropped"):
		out = append(out, fmt.Sprintf("Safety tip: take a backup or copy data out of %s before it is removed.", bc.Table))
	case strings.Contains(msg, "column will be dropped"):
		out = append(out, fmt.Sprintf("Safety tip: take a backup or copy data out of %s.%s before it is removed.", bc.Table, bc.Object))
	}

	return out
}
