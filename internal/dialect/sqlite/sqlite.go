// Package sqlite provides the SQLite dialect helper.
//
// SQLite cannot alter column definitions or constraints of an existing
// table. Those operations return dialect.ErrUnsupported and foreign keys are
// always declared inline in CREATE TABLE.
package sqlite

import (
	"fmt"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

func init() {
	dialect.Register(dialect.SQLite, func() dialect.Helper { return New() })
}

// Helper is the SQLite dialect.
type Helper struct {
	dialect.Base
}

// New initializes a new SQLite helper.
func New() *Helper {
	return &Helper{Base: dialect.NewBase(dialect.Config{
		Name:   dialect.SQLite,
		Driver: "sqlite",
		Capabilities: dialect.Capabilities{
			TransactionalDDL: true,
			DropColumn:       true,
			RenameColumn:     true,
			IfExists:         true,
			IfNotExists:      true,
		},
		Placeholder:     dialect.PlaceholderQuestion,
		TrueLiteral:     "1",
		FalseLiteral:    "0",
		Limit:           dialect.LimitOffset,
		OffsetOnlyLimit: "-1",
	})}
}

// rowidAlias reports whether col is an auto-increment column that must be
// declared as INTEGER PRIMARY KEY to alias the rowid.
func rowidAlias(col *core.Column) bool {
	return col.AutoIncrement && col.Type.IsIntegral()
}

func (h *Helper) SQLType(col *core.Column) (string, error) {
	if rowidAlias(col) {
		return "INTEGER", nil
	}
	switch col.Type {
	case core.TypeBoolean:
		return "BOOLEAN", nil
	case core.TypeByte:
		return "TINYINT", nil
	case core.TypeShort:
		return "SMALLINT", nil
	case core.TypeInt:
		return "INTEGER", nil
	case core.TypeLong, core.TypeID:
		return "BIGINT", nil
	case core.TypeFloat:
		return "REAL", nil
	case core.TypeDouble:
		return "DOUBLE", nil
	case core.TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", col.Size, col.Precision), nil
	case core.TypeString:
		return fmt.Sprintf("VARCHAR(%d)", col.Size), nil
	case core.TypeChar:
		return fmt.Sprintf("CHAR(%d)", col.Size), nil
	case core.TypeClob:
		return "TEXT", nil
	case core.TypeBlob:
		return "BLOB", nil
	case core.TypeDate:
		return "DATE", nil
	case core.TypeTime:
		return "TIME", nil
	case core.TypeDateTime:
		return "TIMESTAMP", nil
	}
	return "", fmt.Errorf("sqlite: no SQL type for column %q of type %s", col.Name, col.Type)
}

// ParseSQLType maps the declared column type back to the abstract model.
// SQLite keeps declared types verbatim, so the names written by SQLType are
// recognized along with common affinity spellings.
func (h *Helper) ParseSQLType(raw string) (dialect.ColumnType, error) {
	base, args, _ := dialect.SplitSQLType(raw)
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
	case "tinyint":
		ct.Type = core.TypeByte
	case "smallint":
		ct.Type = core.TypeShort
	case "integer", "int", "mediumint":
		ct.Type = core.TypeInt
	case "bigint":
		ct.Type = core.TypeLong
	case "real", "float":
		ct.Type = core.TypeFloat
	case "double", "double precision":
		ct.Type = core.TypeDouble
	case "decimal", "numeric":
		ct.Type, ct.Size, ct.Precision = core.TypeDecimal, arg(0), arg(1)
	case "varchar", "character varying", "nvarchar":
		ct.Type, ct.Size = core.TypeString, arg(0)
		if ct.Size == 0 {
			ct.Type = core.TypeClob
		}
	case "char", "character", "nchar":
		ct.Type, ct.Size = core.TypeChar, max(arg(0), 1)
	case "text", "clob":
		ct.Type = core.TypeClob
	case "blob", "":
		ct.Type = core.TypeBlob
	case "date":
		ct.Type = core.TypeDate
	case "time":
		ct.Type = core.TypeTime
	case "timestamp", "datetime":
		ct.Type = core.TypeDateTime
	default:
		return ct, fmt.Errorf("sqlite: unsupported column type %q", raw)
	}
	return ct, nil
}

// InlinePrimaryKey is set when the primary key is a single auto-increment
// column, which SQLite declares as INTEGER PRIMARY KEY AUTOINCREMENT.
func (h *Helper) InlinePrimaryKey(t *core.Table) bool {
	if t.PrimaryKey == nil || len(t.PrimaryKey.Columns) != 1 {
		return false
	}
	col := t.FindColumn(t.PrimaryKey.Columns[0])
	return col != nil && rowidAlias(col)
}

func (h *Helper) ColumnDefinition(t *core.Table, col *core.Column) (string, error) {
	p, err := dialect.StandardColumnParts(h, col)
	if err != nil {
		return "", err
	}
	if t != nil && h.InlinePrimaryKey(t) && t.IsPrimaryKeyColumn(col.Name) {
		p.Identity = "PRIMARY KEY AUTOINCREMENT"
		p.Default = ""
		p.Null = ""
	}
	return p.String(), nil
}

func (h *Helper) AddColumn(t *core.Table, col *core.Column) ([]string, error) {
	if col.AutoIncrement {
		return nil, dialect.Unsupported(dialect.SQLite, "ADD COLUMN", "auto-increment columns must be declared with the table")
	}
	if col.Mandatory && col.DefaultValue == nil {
		return nil, dialect.Unsupported(dialect.SQLite, "ADD COLUMN", "NOT NULL columns need a default value")
	}
	p, err := dialect.StandardColumnParts(h, col)
	if err != nil {
		return nil, err
	}
	return []string{h.AlterTable(t.Name) + " ADD COLUMN " + p.String()}, nil
}

func (h *Helper) ModifyColumn(*core.Table, *core.Column, *core.Column) ([]string, error) {
	return nil, dialect.Unsupported(dialect.SQLite, "ALTER COLUMN", "table must be rebuilt")
}

// IsInternalTable reports whether name is an SQLite bookkeeping table.
func IsInternalTable(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "sqlite_")
}
