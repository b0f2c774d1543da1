package mysql

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"

	"sqlkit/internal/core"
)

func (p *Parser) parseColumns(cols []*ast.ColumnDef, table *core.Table) error {
	for _, colDef := range cols {
		col, err := p.newColumnFromDef(colDef)
		if err != nil {
			return err
		}
		table.AddColumn(col)
		for _, opt := range colDef.Options {
			if err := p.applyColumnOption(table, col, opt); err != nil {
				return fmt.Errorf("column %s: %w", col.Name, err)
			}
		}
	}
	return nil
}

func (p *Parser) newColumnFromDef(colDef *ast.ColumnDef) (*core.Column, error) {
	raw := colDef.Tp.CompactStr()
	if collate := colDef.Tp.GetCollate(); collate != "" {
		raw += " collate " + collate
	}
	for _, opt := range colDef.Options {
		if opt.Tp == ast.ColumnOptionCollate && opt.StrValue != "" {
			raw += " collate " + opt.StrValue
		}
	}

	col := &core.Column{Name: colDef.Name.Name.O}
	ct, err := p.helper.ParseSQLType(raw)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col.Name, err)
	}
	ct.Apply(col)
	return col, nil
}

func (p *Parser) applyColumnOption(table *core.Table, col *core.Column, opt *ast.ColumnOption) error {
	if opt == nil {
		return nil
	}

	switch opt.Tp {
	case ast.ColumnOptionNotNull:
		col.Mandatory = true
	case ast.ColumnOptionNull:
		col.Mandatory = false
	case ast.ColumnOptionPrimaryKey:
		p.ensurePrimaryKeyColumn(table, col.Name)
	case ast.ColumnOptionAutoIncrement:
		col.AutoIncrement = true
	case ast.ColumnOptionDefaultValue:
		col.DefaultValue = defaultValue(opt.Expr)
	case ast.ColumnOptionUniqKey:
		table.AddIndex(col.Name, true, col.Name)
	case ast.ColumnOptionComment:
		if s := exprToString(opt.Expr); s != nil {
			col.Comment = *s
		}
	case ast.ColumnOptionReference:
		return p.addInlineForeignKey(table, col.Name, opt.Refer)
	case ast.ColumnOptionGenerated:
		return fmt.Errorf("generated columns are not supported")
	}
	return nil
}

func (p *Parser) addInlineForeignKey(table *core.Table, colName string, refer *ast.ReferenceDef) error {
	fk, err := foreignKey("", []string{colName}, refer)
	if err != nil {
		return err
	}
	table.AddForeignKey(fk)
	return nil
}

func (p *Parser) ensurePrimaryKeyColumn(table *core.Table, colName string) {
	colName = strings.TrimSpace(colName)
	if colName == "" {
		return
	}
	if table.PrimaryKey == nil {
		table.SetPrimaryKey()
	}
	for _, c := range table.PrimaryKey.Columns {
		if strings.EqualFold(c, colName) {
			return
		}
	}
	table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, colName)
}

// defaultValue converts a DEFAULT expression to the literal form of the
// model. DEFAULT NULL means no default.
func defaultValue(expr ast.ExprNode) *string {
	s := exprToString(expr)
	if s == nil || strings.EqualFold(*s, "NULL") {
		return nil
	}
	// CURRENT_TIMESTAMP() and NOW() restore with empty parentheses.
	upper := strings.ToUpper(*s)
	if upper == "CURRENT_TIMESTAMP()" || upper == "NOW()" {
		return core.StrPtr("CURRENT_TIMESTAMP")
	}
	return s
}

func exprToString(expr ast.ExprNode) *string {
	if expr == nil {
		return nil
	}

	var sb strings.Builder
	restoreCtx := format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)
	if err := expr.Restore(restoreCtx); err != nil {
		return nil
	}
	s := strings.TrimSpace(sb.String())

	if unquoted, ok := tryUnquoteSQLStringLiteral(s); ok {
		return &unquoted
	}
	return &s
}

func tryUnquoteSQLStringLiteral(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[len(s)-1] != '\'' {
		return "", false
	}

	if s[0] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), true
	}

	// Charset introducers: _utf8mb4'x', N'x'.
	q := strings.IndexByte(s, '\'')
	if q <= 0 {
		return "", false
	}
	prefix := strings.TrimSpace(s[:q])
	if !isSQLStringIntroducer(prefix) {
		return "", false
	}
	return strings.ReplaceAll(s[q+1:len(s)-1], "''", "'"), true
}

func isSQLStringIntroducer(prefix string) bool {
	if strings.EqualFold(prefix, "N") {
		return true
	}
	if !strings.HasPrefix(prefix, "_") || len(prefix) == 1 {
		return false
	}
	for _, r := range prefix[1:] {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
