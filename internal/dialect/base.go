package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"sqlkit/internal/core"
)

// PlaceholderStyle selects how bind parameters are written.
type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota // ?
	PlaceholderDollar                           // $1
	PlaceholderAtP                              // @p1
	PlaceholderColon                            // :1
)

// LimitStyle selects how row limiting is written.
type LimitStyle int

const (
	LimitOffset LimitStyle = iota // LIMIT n OFFSET m
	OffsetFetch                   // OFFSET m ROWS FETCH NEXT n ROWS ONLY
)

// Config holds everything Base needs to render ANSI SQL for a dialect.
type Config struct {
	Name         Name
	Driver       string
	MaxIdentLen  int
	MaxInList    int
	Capabilities Capabilities

	QuoteOpen, QuoteClose string
	Placeholder           PlaceholderStyle
	TrueLiteral           string
	FalseLiteral          string

	Limit LimitStyle
	// OffsetOnlyLimit is the LIMIT value used when only an offset is given.
	// Empty means the OFFSET clause may stand alone.
	OffsetOnlyLimit string
	// FetchNeedsOrder injects ORDER BY (SELECT NULL) for OFFSET/FETCH without ordering.
	FetchNeedsOrder bool

	// UnnamedPrimaryKey drops the CONSTRAINT name from PRIMARY KEY clauses.
	UnnamedPrimaryKey bool
	// NoOnUpdate suppresses ON UPDATE actions on foreign keys.
	NoOnUpdate bool
	// RestrictAsNoAction rewrites RESTRICT to NO ACTION.
	RestrictAsNoAction bool
}

// Base implements the parts of Helper that only depend on Config. Concrete
// dialects embed it and add the type mapping and column DDL.
type Base struct {
	cfg Config
}

// NewBase creates a Base for the given configuration.
func NewBase(cfg Config) Base {
	if cfg.TrueLiteral == "" {
		cfg.TrueLiteral, cfg.FalseLiteral = "TRUE", "FALSE"
	}
	if cfg.QuoteOpen == "" {
		cfg.QuoteOpen, cfg.QuoteClose = `"`, `"`
	}
	return Base{cfg: cfg}
}

func (b Base) Name() Name                 { return b.cfg.Name }
func (b Base) DriverName() string         { return b.cfg.Driver }
func (b Base) MaxIdentifierLength() int   { return b.cfg.MaxIdentLen }
func (b Base) Capabilities() Capabilities { return b.cfg.Capabilities }
func (b Base) MaxInListSize() int         { return b.cfg.MaxInList }

// QuoteIdentifier wraps a name in the dialect quotes, doubling embedded
// closing quotes.
func (b Base) QuoteIdentifier(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, b.cfg.QuoteClose, b.cfg.QuoteClose+b.cfg.QuoteClose)
	return b.cfg.QuoteOpen + name + b.cfg.QuoteClose
}

// QuoteString renders a standard SQL string literal.
func (b Base) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (b Base) Placeholder(n int) string {
	switch b.cfg.Placeholder {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(n)
	case PlaceholderAtP:
		return "@p" + strconv.Itoa(n)
	case PlaceholderColon:
		return ":" + strconv.Itoa(n)
	}
	return "?"
}

func (b Base) BoolLiteral(v bool) string {
	if v {
		return b.cfg.TrueLiteral
	}
	return b.cfg.FalseLiteral
}

func (b Base) ConvertArg(_ core.DBType, v any) (any, error) {
	return v, nil
}

func (b Base) InlinePrimaryKey(*core.Table) bool { return false }

func (b Base) TableSuffix(*core.Table) string { return "" }

func (b Base) CommentStatements(*core.Table) []string { return nil }

// QuoteList quotes and joins identifiers: ("a", "b").
func (b Base) QuoteList(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		quoted = append(quoted, b.QuoteIdentifier(n))
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}

// IndexColumns renders an index key list including sort order.
func (b Base) IndexColumns(cols []core.IndexColumn) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		part := b.QuoteIdentifier(c.Name)
		if c.Desc {
			part += " DESC"
		}
		parts = append(parts, part)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (b Base) PrimaryKeyClause(pk *core.PrimaryKey) string {
	if b.cfg.UnnamedPrimaryKey || pk.Name == "" {
		return "PRIMARY KEY " + b.QuoteList(pk.Columns)
	}
	return "CONSTRAINT " + b.QuoteIdentifier(pk.Name) + " PRIMARY KEY " + b.QuoteList(pk.Columns)
}

func (b Base) ForeignKeyClause(fk *core.ForeignKey) string {
	var sb strings.Builder
	if fk.Name != "" {
		sb.WriteString("CONSTRAINT ")
		sb.WriteString(b.QuoteIdentifier(fk.Name))
		sb.WriteByte(' ')
	}
	sb.WriteString("FOREIGN KEY ")
	sb.WriteString(b.QuoteList(fk.Columns))
	sb.WriteString(" REFERENCES ")
	sb.WriteString(b.QuoteIdentifier(fk.RefTable))
	sb.WriteByte(' ')
	sb.WriteString(b.QuoteList(fk.RefColumns))
	if action := b.referentialAction(fk.OnDelete); action != "" {
		sb.WriteString(" ON DELETE ")
		sb.WriteString(action)
	}
	if !b.cfg.NoOnUpdate {
		if action := b.referentialAction(fk.OnUpdate); action != "" {
			sb.WriteString(" ON UPDATE ")
			sb.WriteString(action)
		}
	}
	return sb.String()
}

func (b Base) referentialAction(a core.ReferentialAction) string {
	if a == core.RefActionRestrict && b.cfg.RestrictAsNoAction {
		return string(core.RefActionNoAction)
	}
	if b.cfg.NoOnUpdate && (a == core.RefActionRestrict || a == core.RefActionNoAction || a == core.RefActionSetDefault) {
		// Databases without ON UPDATE support only know the implicit NO ACTION
		// behaviour plus CASCADE and SET NULL on delete.
		return ""
	}
	return string(a)
}

func (b Base) LimitClause(limit, offset int64, ordered bool) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if b.cfg.Limit == OffsetFetch {
		var sb strings.Builder
		if !ordered && b.cfg.FetchNeedsOrder {
			sb.WriteString("ORDER BY (SELECT NULL) ")
		}
		fmt.Fprintf(&sb, "OFFSET %d ROWS", max(offset, 0))
		if limit > 0 {
			fmt.Fprintf(&sb, " FETCH NEXT %d ROWS ONLY", limit)
		}
		return sb.String()
	}
	switch {
	case limit > 0 && offset > 0:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		return fmt.Sprintf("LIMIT %d", limit)
	case b.cfg.OffsetOnlyLimit != "":
		return fmt.Sprintf("LIMIT %s OFFSET %d", b.cfg.OffsetOnlyLimit, offset)
	}
	return fmt.Sprintf("OFFSET %d", offset)
}

// AlterTable renders the ALTER TABLE prefix for a table.
func (b Base) AlterTable(table string) string {
	return "ALTER TABLE " + b.QuoteIdentifier(table)
}

func (b Base) DropColumn(table, column string) (string, error) {
	if !b.cfg.Capabilities.DropColumn {
		return "", Unsupported(b.cfg.Name, "DROP COLUMN", "")
	}
	return b.AlterTable(table) + " DROP COLUMN " + b.QuoteIdentifier(column), nil
}

func (b Base) RenameColumn(table, from, to string) (string, error) {
	if !b.cfg.Capabilities.RenameColumn {
		return "", Unsupported(b.cfg.Name, "RENAME COLUMN", "")
	}
	return b.AlterTable(table) + " RENAME COLUMN " + b.QuoteIdentifier(from) + " TO " + b.QuoteIdentifier(to), nil
}

func (b Base) AddPrimaryKey(table string, pk *core.PrimaryKey) (string, error) {
	if !b.cfg.Capabilities.AlterConstraints {
		return "", Unsupported(b.cfg.Name, "ADD PRIMARY KEY", "table must be rebuilt")
	}
	return b.AlterTable(table) + " ADD " + b.PrimaryKeyClause(pk), nil
}

func (b Base) DropPrimaryKey(table string, pk *core.PrimaryKey) (string, error) {
	if !b.cfg.Capabilities.AlterConstraints {
		return "", Unsupported(b.cfg.Name, "DROP PRIMARY KEY", "table must be rebuilt")
	}
	if pk == nil || pk.Name == "" {
		return "", fmt.Errorf("%s: dropping a primary key requires its constraint name", b.cfg.Name)
	}
	return b.AlterTable(table) + " DROP CONSTRAINT " + b.QuoteIdentifier(pk.Name), nil
}

func (b Base) AddForeignKey(table string, fk *core.ForeignKey) (string, error) {
	if !b.cfg.Capabilities.AlterConstraints {
		return "", Unsupported(b.cfg.Name, "ADD FOREIGN KEY", "table must be rebuilt")
	}
	return b.AlterTable(table) + " ADD " + b.ForeignKeyClause(fk), nil
}

func (b Base) DropForeignKey(table string, fk *core.ForeignKey) (string, error) {
	if !b.cfg.Capabilities.AlterConstraints {
		return "", Unsupported(b.cfg.Name, "DROP FOREIGN KEY", "table must be rebuilt")
	}
	return b.AlterTable(table) + " DROP CONSTRAINT " + b.QuoteIdentifier(fk.Name), nil
}

func (b Base) CreateIndex(table string, idx *core.Index) (string, error) {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s %s", kind, b.QuoteIdentifier(idx.Name), b.QuoteIdentifier(table), b.IndexColumns(idx.Columns)), nil
}

func (b Base) DropIndex(_ string, idx *core.Index) (string, error) {
	return "DROP INDEX " + b.QuoteIdentifier(idx.Name), nil
}

func (b Base) RenameTable(from, to string) (string, error) {
	return b.AlterTable(from) + " RENAME TO " + b.QuoteIdentifier(to), nil
}

func (b Base) DropTable(table string, ifExists bool) (string, error) {
	if ifExists {
		if !b.cfg.Capabilities.IfExists {
			return "", Unsupported(b.cfg.Name, "DROP TABLE IF EXISTS", "")
		}
		return "DROP TABLE IF EXISTS " + b.QuoteIdentifier(table), nil
	}
	return "DROP TABLE " + b.QuoteIdentifier(table), nil
}

// TruncateTables deletes row by row in the given order. TRUNCATE is refused
// for tables referenced by a foreign key on most databases.
func (b Base) TruncateTables(tables []string) ([]string, error) {
	stmts := make([]string, 0, len(tables))
	for _, t := range tables {
		stmts = append(stmts, "DELETE FROM "+b.QuoteIdentifier(t))
	}
	return stmts, nil
}
