// Package mysql provides the MySQL dialect helper: type mapping, quoting
// and ALTER TABLE syntax for MySQL 8 and compatible servers.
package mysql

import (
	"fmt"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

const (
	maxIdentLen = 64
	// maxVarchar is the longest VARCHAR (in characters) that fits a utf8mb4 row.
	maxVarchar = 16383
	// binaryCollation gives case-sensitive comparison for Binary columns.
	binaryCollation = "utf8mb4_bin"
)

func init() {
	dialect.Register(dialect.MySQL, func() dialect.Helper { return New() })
}

// Helper is the MySQL dialect.
type Helper struct {
	dialect.Base
}

// New initializes a new MySQL helper.
func New() *Helper {
	return &Helper{Base: dialect.NewBase(dialect.Config{
		Name:        dialect.MySQL,
		Driver:      "mysql",
		MaxIdentLen: maxIdentLen,
		Capabilities: dialect.Capabilities{
			AlterColumn:      true,
			AlterConstraints: true,
			DropColumn:       true,
			RenameColumn:     true,
			IfExists:         true,
			IfNotExists:      true,
			ForUpdate:        true,
		},
		QuoteOpen:         "`",
		QuoteClose:        "`",
		Placeholder:       dialect.PlaceholderQuestion,
		Limit:             dialect.LimitOffset,
		OffsetOnlyLimit:   "18446744073709551615",
		UnnamedPrimaryKey: true,
	})}
}

// QuoteString escapes backslashes and control characters in addition to
// doubling quotes, since MySQL treats backslash as an escape character.
func (h *Helper) QuoteString(value string) string {
	var b strings.Builder
	b.Grow(len(value) + len(value)/10 + 2)

	b.WriteByte('\'')
	for _, char := range value {
		switch char {
		case '\'':
			b.WriteString("''")
		case '\\':
			b.WriteString(`\\`)
		case '\x00':
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\x1A':
			b.WriteString(`\Z`)
		default:
			b.WriteRune(char)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// SQLType maps an abstract column type to MySQL syntax.
func (h *Helper) SQLType(col *core.Column) (string, error) {
	switch col.Type {
	case core.TypeBoolean:
		return "TINYINT(1)", nil
	case core.TypeByte:
		return "TINYINT", nil
	case core.TypeShort:
		return "SMALLINT", nil
	case core.TypeInt:
		return "INT", nil
	case core.TypeLong, core.TypeID:
		return "BIGINT", nil
	case core.TypeFloat:
		return "FLOAT", nil
	case core.TypeDouble:
		return "DOUBLE", nil
	case core.TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", col.Size, col.Precision), nil
	case core.TypeString:
		if col.Size > maxVarchar {
			return h.collate("LONGTEXT", col), nil
		}
		return h.collate(fmt.Sprintf("VARCHAR(%d)", col.Size), col), nil
	case core.TypeChar:
		return h.collate(fmt.Sprintf("CHAR(%d)", col.Size), col), nil
	case core.TypeClob:
		return h.collate("LONGTEXT", col), nil
	case core.TypeBlob:
		return "LONGBLOB", nil
	case core.TypeDate:
		return "DATE", nil
	case core.TypeTime:
		return "TIME", nil
	case core.TypeDateTime:
		return "DATETIME(3)", nil
	}
	return "", fmt.Errorf("mysql: no SQL type for column %q of type %s", col.Name, col.Type)
}

func (h *Helper) collate(typ string, col *core.Column) string {
	if col.Binary {
		return typ + " COLLATE " + binaryCollation
	}
	return typ
}

// ParseSQLType maps an information_schema COLUMN_TYPE (or a dump column
// type) back to the abstract model.
func (h *Helper) ParseSQLType(raw string) (dialect.ColumnType, error) {
	base, args, rest := dialect.SplitSQLType(raw)
	arg := func(i int) int {
		if i < len(args) && args[i] > 0 {
			return args[i]
		}
		return 0
	}
	ct := dialect.ColumnType{Binary: strings.Contains(rest, "_bin") || strings.Contains(rest, "binary")}
	switch base {
	case "bool", "boolean":
		ct.Type = core.TypeBoolean
	case "bit":
		if arg(0) > 1 {
			return ct, fmt.Errorf("mysql: unsupported column type %q", raw)
		}
		ct.Type = core.TypeBoolean
	case "tinyint":
		ct.Type = core.TypeByte
		if arg(0) == 1 {
			ct.Type = core.TypeBoolean
		}
	case "smallint":
		ct.Type = core.TypeShort
	case "mediumint", "int", "integer":
		ct.Type = core.TypeInt
	case "bigint":
		ct.Type = core.TypeLong
	case "float":
		ct.Type = core.TypeFloat
	case "double", "real", "double precision":
		ct.Type = core.TypeDouble
	case "decimal", "numeric", "dec", "fixed":
		ct.Type, ct.Size, ct.Precision = core.TypeDecimal, arg(0), arg(1)
		if ct.Size == 0 {
			ct.Size = 10
		}
	case "varchar", "enum", "set":
		ct.Type, ct.Size = core.TypeString, arg(0)
		if base != "varchar" {
			ct.Size = 255
		}
	case "char":
		ct.Type, ct.Size = core.TypeChar, max(arg(0), 1)
	case "tinytext", "text", "mediumtext", "longtext", "json":
		ct.Type = core.TypeClob
	case "tinyblob", "blob", "mediumblob", "longblob", "binary", "varbinary":
		ct.Type = core.TypeBlob
		ct.Binary = false
	case "date":
		ct.Type = core.TypeDate
	case "time":
		ct.Type = core.TypeTime
	case "datetime", "timestamp":
		ct.Type = core.TypeDateTime
	default:
		return ct, fmt.Errorf("mysql: unsupported column type %q", raw)
	}
	if !ct.Type.IsTextual() {
		ct.Binary = false
	}
	return ct, nil
}

// ColumnDefinition renders a column in MySQL order: type, nullability,
// AUTO_INCREMENT, DEFAULT, COMMENT.
func (h *Helper) ColumnDefinition(_ *core.Table, col *core.Column) (string, error) {
	typ, err := h.SQLType(col)
	if err != nil {
		return "", err
	}
	parts := []string{h.QuoteIdentifier(col.Name), typ}
	if col.Mandatory {
		parts = append(parts, "NOT NULL")
	} else {
		parts = append(parts, "NULL")
	}
	if col.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if col.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+dialect.FormatDefault(h, col))
	}
	if col.Comment != "" {
		parts = append(parts, "COMMENT "+h.QuoteString(col.Comment))
	}
	return strings.Join(parts, " "), nil
}

func (h *Helper) TableSuffix(t *core.Table) string {
	var opts []string
	if t.Engine != "" {
		opts = append(opts, "ENGINE="+t.Engine)
	}
	if t.Comment != "" {
		opts = append(opts, "COMMENT="+h.QuoteString(t.Comment))
	}
	if len(opts) == 0 {
		return ""
	}
	return " " + strings.Join(opts, " ")
}

// SetTableComment renders COMMENT='' for an empty comment, which MySQL
// treats as no comment.
func (h *Helper) SetTableComment(table, comment string) string {
	return h.AlterTable(table) + " COMMENT=" + h.QuoteString(comment)
}

func (h *Helper) AddColumn(t *core.Table, col *core.Column) ([]string, error) {
	def, err := h.ColumnDefinition(t, col)
	if err != nil {
		return nil, err
	}
	return []string{h.AlterTable(t.Name) + " ADD COLUMN " + def}, nil
}

// ModifyColumn redefines the column in one MODIFY COLUMN statement.
func (h *Helper) ModifyColumn(t *core.Table, _, to *core.Column) ([]string, error) {
	def, err := h.ColumnDefinition(t, to)
	if err != nil {
		return nil, err
	}
	return []string{h.AlterTable(t.Name) + " MODIFY COLUMN " + def}, nil
}

func (h *Helper) DropPrimaryKey(table string, _ *core.PrimaryKey) (string, error) {
	return h.AlterTable(table) + " DROP PRIMARY KEY", nil
}

func (h *Helper) DropForeignKey(table string, fk *core.ForeignKey) (string, error) {
	return h.AlterTable(table) + " DROP FOREIGN KEY " + h.QuoteIdentifier(fk.Name), nil
}

func (h *Helper) DropIndex(table string, idx *core.Index) (string, error) {
	return "DROP INDEX " + h.QuoteIdentifier(idx.Name) + " ON " + h.QuoteIdentifier(table), nil
}

func (h *Helper) RenameTable(from, to string) (string, error) {
	return "RENAME TABLE " + h.QuoteIdentifier(from) + " TO " + h.QuoteIdentifier(to), nil
}
