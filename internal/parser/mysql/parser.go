// Package mysql reads CREATE TABLE statements of a MySQL dump into the
// schema model.
package mysql

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect/mysql"
)

type Parser struct {
	p      *parser.Parser
	helper *mysql.Helper
}

func NewParser() *Parser {
	return &Parser{
		p:      parser.New(),
		helper: mysql.New(),
	}
}

// Parse converts every CREATE TABLE statement of sql. Other statements
// (SET, INSERT, DROP and friends found in dumps) are ignored.
func (p *Parser) Parse(sql string) (*core.Schema, error) {
	stmtNodes, _, err := p.p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL dump: %w", err)
	}

	schema := &core.Schema{}
	for _, stmtNode := range stmtNodes {
		switch stmt := stmtNode.(type) {
		case *ast.CreateDatabaseStmt:
			if schema.Name == "" {
				schema.Name = stmt.Name.O
			}
		case *ast.UseStmt:
			if schema.Name == "" {
				schema.Name = stmt.DBName
			}
		case *ast.CreateTableStmt:
			table, err := p.convertCreateTable(stmt)
			if err != nil {
				return nil, err
			}
			schema.Tables = append(schema.Tables, table)
		}
	}
	schema.Normalize()
	return schema, nil
}

func (p *Parser) convertCreateTable(stmt *ast.CreateTableStmt) (*core.Table, error) {
	if stmt.ReferTable != nil {
		return nil, fmt.Errorf("table %s: CREATE TABLE ... LIKE is not supported", stmt.Table.Name.O)
	}
	if stmt.Select != nil {
		return nil, fmt.Errorf("table %s: CREATE TABLE ... SELECT is not supported", stmt.Table.Name.O)
	}

	table := core.NewTable(stmt.Table.Name.O)
	for _, opt := range stmt.Options {
		switch opt.Tp {
		case ast.TableOptionComment:
			table.Comment = opt.StrValue
		case ast.TableOptionEngine:
			table.Engine = opt.StrValue
		}
	}

	if err := p.parseColumns(stmt.Cols, table); err != nil {
		return nil, fmt.Errorf("table %s: %w", table.Name, err)
	}
	if err := p.parseConstraints(stmt.Constraints, table); err != nil {
		return nil, fmt.Errorf("table %s: %w", table.Name, err)
	}
	return table, nil
}

func referentialAction(opt *ast.OnDeleteOpt, upd *ast.OnUpdateOpt) (core.ReferentialAction, core.ReferentialAction, error) {
	var del, up core.ReferentialAction
	var err error
	if opt != nil {
		if del, err = parseReferOption(opt.ReferOpt); err != nil {
			return "", "", err
		}
	}
	if upd != nil {
		if up, err = parseReferOption(upd.ReferOpt); err != nil {
			return "", "", err
		}
	}
	return del, up, nil
}

func parseReferOption(opt ast.ReferOptionType) (core.ReferentialAction, error) {
	if opt == ast.ReferOptionNoOption {
		return core.RefActionNone, nil
	}
	action, err := core.ParseReferentialAction(strings.TrimSpace(opt.String()))
	if err != nil {
		return "", err
	}
	// NO ACTION is what MySQL does without a clause.
	if action == core.RefActionNoAction {
		return core.RefActionNone, nil
	}
	return action, nil
}
