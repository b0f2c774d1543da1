// Package mssql provides the Microsoft SQL Server dialect helper.
package mssql

import (
	"fmt"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

const (
	maxIdentLen = 128
	// maxNVarchar is the longest NVARCHAR(n); longer strings use NVARCHAR(MAX).
	maxNVarchar = 4000
	// SQL Server accepts at most 2100 parameters per request.
	maxInList       = 2000
	binaryCollation = "Latin1_General_BIN2"
)

func init() {
	dialect.Register(dialect.MSSQL, func() dialect.Helper { return New() })
}

// Helper is the SQL Server dialect.
type Helper struct {
	dialect.Base
}

// New initializes a new SQL Server helper.
func New() *Helper {
	return &Helper{Base: dialect.NewBase(dialect.Config{
		Name:        dialect.MSSQL,
		Driver:      "sqlserver",
		MaxIdentLen: maxIdentLen,
		MaxInList:   maxInList,
		Capabilities: dialect.Capabilities{
			TransactionalDDL: true,
			AlterColumn:      true,
			AlterConstraints: true,
			DropColumn:       true,
			RenameColumn:     true,
			IfExists:         true,
		},
		QuoteOpen:          "[",
		QuoteClose:         "]",
		Placeholder:        dialect.PlaceholderAtP,
		TrueLiteral:        "1",
		FalseLiteral:       "0",
		Limit:              dialect.OffsetFetch,
		FetchNeedsOrder:    true,
		RestrictAsNoAction: true,
	})}
}

// QuoteString uses N'' literals so that unicode text survives.
func (h *Helper) QuoteString(value string) string {
	return "N" + h.Base.QuoteString(value)
}

func (h *Helper) SQLType(col *core.Column) (string, error) {
	switch col.Type {
	case core.TypeBoolean:
		return "BIT", nil
	case core.TypeByte, core.TypeShort:
		// TINYINT is unsigned in SQL Server.
		return "SMALLINT", nil
	case core.TypeInt:
		return "INT", nil
	case core.TypeLong, core.TypeID:
		return "BIGINT", nil
	case core.TypeFloat:
		return "REAL", nil
	case core.TypeDouble:
		return "FLOAT", nil
	case core.TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", col.Size, col.Precision), nil
	case core.TypeString:
		if col.Size > maxNVarchar {
			return h.collate("NVARCHAR(MAX)", col), nil
		}
		return h.collate(fmt.Sprintf("NVARCHAR(%d)", col.Size), col), nil
	case core.TypeChar:
		return h.collate(fmt.Sprintf("NCHAR(%d)", col.Size), col), nil
	case core.TypeClob:
		return h.collate("NVARCHAR(MAX)", col), nil
	case core.TypeBlob:
		return "VARBINARY(MAX)", nil
	case core.TypeDate:
		return "DATE", nil
	case core.TypeTime:
		return "TIME", nil
	case core.TypeDateTime:
		return "DATETIME2", nil
	}
	return "", fmt.Errorf("mssql: no SQL type for column %q of type %s", col.Name, col.Type)
}

func (h *Helper) collate(typ string, col *core.Column) string {
	if col.Binary {
		return typ + " COLLATE " + binaryCollation
	}
	return typ
}

func (h *Helper) ParseSQLType(raw string) (dialect.ColumnType, error) {
	base, args, rest := dialect.SplitSQLType(raw)
	arg := func(i int) int {
		if i < len(args) {
			return args[i]
		}
		return 0
	}
	ct := dialect.ColumnType{Binary: strings.Contains(rest, "_bin")}
	switch base {
	case "bit":
		ct.Type = core.TypeBoolean
	case "tinyint", "smallint":
		ct.Type = core.TypeShort
	case "int":
		ct.Type = core.TypeInt
	case "bigint":
		ct.Type = core.TypeLong
	case "real":
		ct.Type = core.TypeFloat
	case "float":
		ct.Type = core.TypeDouble
	case "decimal", "numeric", "money":
		ct.Type, ct.Size, ct.Precision = core.TypeDecimal, max(arg(0), 0), max(arg(1), 0)
		if base == "money" {
			ct.Size, ct.Precision = 19, 4
		}
	case "nvarchar", "varchar":
		// -1 is how the catalog reports MAX.
		if arg(0) <= 0 {
			ct.Type = core.TypeClob
		} else {
			ct.Type, ct.Size = core.TypeString, arg(0)
		}
	case "nchar", "char":
		ct.Type, ct.Size = core.TypeChar, max(arg(0), 1)
	case "ntext", "text":
		ct.Type = core.TypeClob
	case "varbinary", "binary", "image":
		ct.Type = core.TypeBlob
	case "date":
		ct.Type = core.TypeDate
	case "time":
		ct.Type = core.TypeTime
	case "datetime2", "datetime", "smalldatetime", "datetimeoffset":
		ct.Type = core.TypeDateTime
	default:
		return ct, fmt.Errorf("mssql: unsupported column type %q", raw)
	}
	if !ct.Type.IsTextual() {
		ct.Binary = false
	}
	return ct, nil
}

func (h *Helper) ColumnDefinition(_ *core.Table, col *core.Column) (string, error) {
	p, err := dialect.StandardColumnParts(h, col)
	if err != nil {
		return "", err
	}
	if col.AutoIncrement {
		p.Identity = "IDENTITY(1,1)"
		p.Default = ""
	}
	if !col.Mandatory {
		p.Null = "NULL"
	}
	return p.String(), nil
}

// AddColumn uses ALTER TABLE ... ADD without the COLUMN keyword.
func (h *Helper) AddColumn(t *core.Table, col *core.Column) ([]string, error) {
	def, err := h.ColumnDefinition(t, col)
	if err != nil {
		return nil, err
	}
	return []string{h.AlterTable(t.Name) + " ADD " + def}, nil
}

// ModifyColumn changes type and nullability. Defaults are separate named
// constraints in SQL Server and cannot be changed through ALTER COLUMN.
func (h *Helper) ModifyColumn(t *core.Table, from, to *core.Column) ([]string, error) {
	if from.AutoIncrement != to.AutoIncrement {
		return nil, dialect.Unsupported(dialect.MSSQL, "ALTER COLUMN", "IDENTITY cannot be added or removed")
	}
	if !dialect.SameDefault(h, from, to) {
		return nil, dialect.Unsupported(dialect.MSSQL, "ALTER COLUMN", "column defaults are named constraints")
	}
	typ, err := h.SQLType(to)
	if err != nil {
		return nil, err
	}
	null := "NULL"
	if to.Mandatory {
		null = "NOT NULL"
	}
	return []string{fmt.Sprintf("%s ALTER COLUMN %s %s %s", h.AlterTable(t.Name), h.QuoteIdentifier(to.Name), typ, null)}, nil
}

// RenameColumn goes through sp_rename, which takes unquoted object names.
func (h *Helper) RenameColumn(table, from, to string) (string, error) {
	return fmt.Sprintf("EXEC sp_rename %s, %s, 'COLUMN'", h.QuoteString(table+"."+from), h.QuoteString(to)), nil
}

func (h *Helper) RenameTable(from, to string) (string, error) {
	return fmt.Sprintf("EXEC sp_rename %s, %s", h.QuoteString(from), h.QuoteString(to)), nil
}

func (h *Helper) DropIndex(table string, idx *core.Index) (string, error) {
	return "DROP INDEX " + h.QuoteIdentifier(idx.Name) + " ON " + h.QuoteIdentifier(table), nil
}
