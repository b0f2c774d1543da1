// Package oracle provides the Oracle dialect helper.
package oracle

import (
	"fmt"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

const (
	// Oracle before 12.2 limits identifiers to 30 bytes.
	maxIdentLen = 30
	maxInList   = 1000
	maxVarchar2 = 4000
)

func init() {
	dialect.Register(dialect.Oracle, func() dialect.Helper { return New() })
}

// Helper is the Oracle dialect.
type Helper struct {
	dialect.Base
}

// New initializes a new Oracle helper.
func New() *Helper {
	return &Helper{Base: dialect.NewBase(dialect.Config{
		Name:        dialect.Oracle,
		Driver:      "oracle",
		MaxIdentLen: maxIdentLen,
		MaxInList:   maxInList,
		Capabilities: dialect.Capabilities{
			AlterColumn:      true,
			AlterConstraints: true,
			DropColumn:       true,
			RenameColumn:     true,
			ForUpdate:        true,
		},
		Placeholder:  dialect.PlaceholderColon,
		TrueLiteral:  "1",
		FalseLiteral: "0",
		Limit:        dialect.OffsetFetch,
		NoOnUpdate:   true,
	})}
}

func (h *Helper) SQLType(col *core.Column) (string, error) {
	switch col.Type {
	case core.TypeBoolean:
		return "NUMBER(1)", nil
	case core.TypeByte:
		return "NUMBER(3)", nil
	case core.TypeShort:
		return "NUMBER(5)", nil
	case core.TypeInt:
		return "NUMBER(10)", nil
	case core.TypeLong, core.TypeID:
		return "NUMBER(19)", nil
	case core.TypeFloat:
		return "BINARY_FLOAT", nil
	case core.TypeDouble:
		return "BINARY_DOUBLE", nil
	case core.TypeDecimal:
		return fmt.Sprintf("NUMBER(%d,%d)", col.Size, col.Precision), nil
	case core.TypeString:
		if col.Size > maxVarchar2 {
			return "CLOB", nil
		}
		return fmt.Sprintf("VARCHAR2(%d CHAR)", col.Size), nil
	case core.TypeChar:
		return fmt.Sprintf("CHAR(%d CHAR)", col.Size), nil
	case core.TypeClob:
		return "CLOB", nil
	case core.TypeBlob:
		return "BLOB", nil
	case core.TypeDate, core.TypeTime:
		// Oracle has no time-of-day type; DATE carries a time component.
		return "DATE", nil
	case core.TypeDateTime:
		return "TIMESTAMP", nil
	}
	return "", fmt.Errorf("oracle: no SQL type for column %q of type %s", col.Name, col.Type)
}

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
	case "number", "numeric", "decimal", "integer", "int", "smallint":
		precision, scale := arg(0), arg(1)
		switch {
		case base == "integer" || base == "int" || base == "smallint":
			ct.Type, ct.Size = core.TypeDecimal, 38
		case scale > 0 || precision == 0:
			ct.Type, ct.Size, ct.Precision = core.TypeDecimal, precision, scale
		case precision == 1:
			ct.Type = core.TypeBoolean
		case precision <= 3:
			ct.Type = core.TypeByte
		case precision <= 5:
			ct.Type = core.TypeShort
		case precision <= 10:
			ct.Type = core.TypeInt
		case precision <= 19:
			ct.Type = core.TypeLong
		default:
			ct.Type, ct.Size = core.TypeDecimal, precision
		}
		if ct.Type == core.TypeDecimal && ct.Size == 0 {
			ct.Size = 38
		}
	case "binary_float", "float":
		ct.Type = core.TypeFloat
	case "binary_double":
		ct.Type = core.TypeDouble
	case "varchar2", "nvarchar2", "varchar":
		ct.Type, ct.Size = core.TypeString, arg(0)
	case "char", "nchar":
		ct.Type, ct.Size = core.TypeChar, max(arg(0), 1)
	case "clob", "nclob", "long":
		ct.Type = core.TypeClob
	case "blob", "raw", "long raw":
		ct.Type = core.TypeBlob
	case "date":
		ct.Type = core.TypeDate
	case "timestamp":
		ct.Type = core.TypeDateTime
	default:
		return ct, fmt.Errorf("oracle: unsupported column type %q", raw)
	}
	return ct, nil
}

// ConvertArg binds booleans as 1/0 since NUMBER(1) stores them.
func (h *Helper) ConvertArg(t core.DBType, v any) (any, error) {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return v, nil
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

// SetTableComment removes the comment with IS ''. Oracle has no IS NULL
// form and stores the empty string as NULL.
func (h *Helper) SetTableComment(table, comment string) string {
	return fmt.Sprintf("COMMENT ON TABLE %s IS %s", h.QuoteIdentifier(table), h.QuoteString(comment))
}

func (h *Helper) columnComment(table string, col *core.Column) string {
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", h.QuoteIdentifier(table), h.QuoteIdentifier(col.Name), h.QuoteString(col.Comment))
}

// AddColumn uses the parenthesized ADD (...) form.
func (h *Helper) AddColumn(t *core.Table, col *core.Column) ([]string, error) {
	def, err := h.ColumnDefinition(t, col)
	if err != nil {
		return nil, err
	}
	stmts := []string{h.AlterTable(t.Name) + " ADD (" + def + ")"}
	if col.Comment != "" {
		stmts = append(stmts, h.columnComment(t.Name, col))
	}
	return stmts, nil
}

// ModifyColumn only names NULL or NOT NULL when nullability changes; Oracle
// rejects a MODIFY that restates the current nullability.
func (h *Helper) ModifyColumn(t *core.Table, from, to *core.Column) ([]string, error) {
	if from.AutoIncrement != to.AutoIncrement {
		return nil, dialect.Unsupported(dialect.Oracle, "MODIFY", "identity cannot be added or removed")
	}
	fromType, err := h.SQLType(from)
	if err != nil {
		return nil, err
	}
	toType, err := h.SQLType(to)
	if err != nil {
		return nil, err
	}
	parts := []string{h.QuoteIdentifier(to.Name)}
	if fromType != toType {
		parts = append(parts, toType)
	}
	if !dialect.SameDefault(h, from, to) {
		parts = append(parts, "DEFAULT "+dialect.FormatDefault(h, to))
	}
	if from.Mandatory != to.Mandatory {
		if to.Mandatory {
			parts = append(parts, "NOT NULL")
		} else {
			parts = append(parts, "NULL")
		}
	}
	var stmts []string
	if len(parts) > 1 {
		stmts = append(stmts, h.AlterTable(t.Name)+" MODIFY ("+strings.Join(parts, " ")+")")
	}
	if from.Comment != to.Comment {
		stmts = append(stmts, h.columnComment(t.Name, to))
	}
	return stmts, nil
}
