// Package postgresql provides the PostgreSQL dialect helper.
package postgresql

import (
	"fmt"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

const (
	maxIdentLen = 63
	maxVarchar  = 10485760
)

func init() {
	dialect.Register(dialect.PostgreSQL, func() dialect.Helper { return New() })
}

// Helper is the PostgreSQL dialect.
type Helper struct {
	dialect.Base
}

// New initializes a new PostgreSQL helper.
func New() *Helper {
	return &Helper{Base: dialect.NewBase(dialect.Config{
		Name:        dialect.PostgreSQL,
		Driver:      "postgres",
		MaxIdentLen: maxIdentLen,
		Capabilities: dialect.Capabilities{
			TransactionalDDL: true,
			AlterColumn:      true,
			AlterConstraints: true,
			DropColumn:       true,
			RenameColumn:     true,
			IfExists:         true,
			IfNotExists:      true,
			ForUpdate:        true,
		},
		Placeholder: dialect.PlaceholderDollar,
		Limit:       dialect.LimitOffset,
	})}
}

func (h *Helper) SQLType(col *core.Column) (string, error) {
	switch col.Type {
	case core.TypeBoolean:
		return "BOOLEAN", nil
	case core.TypeByte, core.TypeShort:
		return "SMALLINT", nil
	case core.TypeInt:
		return "INTEGER", nil
	case core.TypeLong, core.TypeID:
		return "BIGINT", nil
	case core.TypeFloat:
		return "REAL", nil
	case core.TypeDouble:
		return "DOUBLE PRECISION", nil
	case core.TypeDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", col.Size, col.Precision), nil
	case core.TypeString:
		if col.Size > maxVarchar {
			return h.collate("TEXT", col), nil
		}
		return h.collate(fmt.Sprintf("VARCHAR(%d)", col.Size), col), nil
	case core.TypeChar:
		return h.collate(fmt.Sprintf("CHAR(%d)", col.Size), col), nil
	case core.TypeClob:
		return h.collate("TEXT", col), nil
	case core.TypeBlob:
		return "BYTEA", nil
	case core.TypeDate:
		return "DATE", nil
	case core.TypeTime:
		return "TIME", nil
	case core.TypeDateTime:
		return "TIMESTAMP", nil
	}
	return "", fmt.Errorf("postgresql: no SQL type for column %q of type %s", col.Name, col.Type)
}

// collate uses the "C" collation, which compares bytes, for Binary columns.
func (h *Helper) collate(typ string, col *core.Column) string {
	if col.Binary {
		return typ + ` COLLATE "C"`
	}
	return typ
}

// ParseSQLType accepts the output of pg_catalog.format_type.
func (h *Helper) ParseSQLType(raw string) (dialect.ColumnType, error) {
	base, args, rest := dialect.SplitSQLType(raw)
	arg := func(i int) int {
		if i < len(args) && args[i] > 0 {
			return args[i]
		}
		return 0
	}
	ct := dialect.ColumnType{}
	switch base {
	case "boolean", "bool":
		ct.Type = core.TypeBoolean
	case "smallint", "int2", "smallserial":
		ct.Type = core.TypeShort
	case "integer", "int", "int4", "serial":
		ct.Type = core.TypeInt
	case "bigint", "int8", "bigserial":
		ct.Type = core.TypeLong
	case "real", "float4":
		ct.Type = core.TypeFloat
	case "double precision", "float8":
		ct.Type = core.TypeDouble
	case "numeric", "decimal":
		ct.Type, ct.Size, ct.Precision = core.TypeDecimal, arg(0), arg(1)
	case "character varying", "varchar":
		ct.Type, ct.Size = core.TypeString, arg(0)
		if ct.Size == 0 {
			ct.Type = core.TypeClob
		}
	case "character", "char", "bpchar":
		ct.Type, ct.Size = core.TypeChar, max(arg(0), 1)
	case "text":
		ct.Type = core.TypeClob
	case "bytea":
		ct.Type = core.TypeBlob
	case "date":
		ct.Type = core.TypeDate
	case "time", "time without time zone":
		ct.Type = core.TypeTime
	case "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz":
		ct.Type = core.TypeDateTime
	default:
		return ct, fmt.Errorf("postgresql: unsupported column type %q", raw)
	}
	if strings.HasSuffix(base, "serial") {
		ct.AutoIncrement = true
	}
	if ct.Type.IsTextual() && strings.Contains(rest, `collate "c"`) {
		ct.Binary = true
	}
	return ct, nil
}

func (h *Helper) ColumnDefinition(_ *core.Table, col *core.Column) (string, error) {
	p, err := dialect.StandardColumnParts(h, col)
	if err != nil {
		return "", err
	}
	if col.AutoIncrement {
		p.Identity = "GENERATED BY DEFAULT AS IDENTITY"
		p.Default = ""
	}
	return p.String(), nil
}

// CommentStatements issues COMMENT ON for the table and its columns.
func (h *Helper) CommentStatements(t *core.Table) []string {
	var stmts []string
	if t.Comment != "" {
		stmts = append(stmts, h.SetTableComment(t.Name, t.Comment))
	}
	for _, c := range t.Columns {
		if c.Comment != "" {
			stmts = append(stmts, h.columnComment(t.Name, c))
		}
	}
	return stmts
}

// SetTableComment clears the comment with IS NULL when comment is empty.
func (h *Helper) SetTableComment(table, comment string) string {
	return "COMMENT ON TABLE " + h.QuoteIdentifier(table) + " IS " + h.commentValue(comment)
}

func (h *Helper) columnComment(table string, col *core.Column) string {
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", h.QuoteIdentifier(table), h.QuoteIdentifier(col.Name), h.commentValue(col.Comment))
}

func (h *Helper) commentValue(comment string) string {
	if comment == "" {
		return "NULL"
	}
	return h.QuoteString(comment)
}

func (h *Helper) AddColumn(t *core.Table, col *core.Column) ([]string, error) {
	def, err := h.ColumnDefinition(t, col)
	if err != nil {
		return nil, err
	}
	stmts := []string{h.AlterTable(t.Name) + " ADD COLUMN " + def}
	if col.Comment != "" {
		stmts = append(stmts, h.columnComment(t.Name, col))
	}
	return stmts, nil
}

// ModifyColumn emits one ALTER COLUMN action per changed attribute.
func (h *Helper) ModifyColumn(t *core.Table, from, to *core.Column) ([]string, error) {
	fromType, err := h.SQLType(from)
	if err != nil {
		return nil, err
	}
	toType, err := h.SQLType(to)
	if err != nil {
		return nil, err
	}
	col := h.QuoteIdentifier(to.Name)
	var actions []string
	if fromType != toType {
		actions = append(actions, fmt.Sprintf("ALTER COLUMN %s TYPE %s USING %s::%s", col, toType, col, baseType(toType)))
	}
	if from.AutoIncrement != to.AutoIncrement {
		if to.AutoIncrement {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s ADD GENERATED BY DEFAULT AS IDENTITY", col))
		} else {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s DROP IDENTITY IF EXISTS", col))
		}
	}
	if !to.AutoIncrement && !dialect.SameDefault(h, from, to) {
		if to.DefaultValue == nil {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s DROP DEFAULT", col))
		} else {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s SET DEFAULT %s", col, dialect.FormatDefault(h, to)))
		}
	}
	if from.Mandatory != to.Mandatory {
		if to.Mandatory {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s SET NOT NULL", col))
		} else {
			actions = append(actions, fmt.Sprintf("ALTER COLUMN %s DROP NOT NULL", col))
		}
	}
	var stmts []string
	if len(actions) > 0 {
		stmts = append(stmts, h.AlterTable(t.Name)+" "+strings.Join(actions, ", "))
	}
	if from.Comment != to.Comment {
		stmts = append(stmts, h.columnComment(t.Name, to))
	}
	return stmts, nil
}

// TruncateTables empties all tables in one statement, which PostgreSQL
// accepts even when they reference each other.
func (h *Helper) TruncateTables(tables []string) ([]string, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(tables))
	for i, t := range tables {
		quoted[i] = h.QuoteIdentifier(t)
	}
	return []string{"TRUNCATE TABLE " + strings.Join(quoted, ", ")}, nil
}

// baseType strips the collation from a rendered type for USING casts.
func baseType(typ string) string {
	if i := strings.Index(typ, " COLLATE"); i >= 0 {
		return typ[:i]
	}
	return typ
}
