package compile

import (
	"fmt"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/query"
)

func (c *Compiler) ddl(stmt query.Statement) ([]string, error) {
	h := c.helper
	one := func(s string, err error) ([]string, error) {
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}

	switch s := stmt.(type) {
	case *query.CreateTableStmt:
		return c.createTable(s)
	case *query.DropTableStmt:
		return one(h.DropTable(s.Name, s.IfExists))
	case *query.AlterTableStmt:
		return c.alterTable(s)
	case *query.CreateIndexStmt:
		if s.Index == nil {
			return nil, fmt.Errorf("compile: CREATE INDEX on %s without index", s.Table)
		}
		return one(h.CreateIndex(s.Table, s.Index))
	case *query.DropIndexStmt:
		if s.Index == nil {
			return nil, fmt.Errorf("compile: DROP INDEX on %s without index", s.Table)
		}
		return one(h.DropIndex(s.Table, s.Index))
	case *query.RenameTableStmt:
		return one(h.RenameTable(s.From, s.To))
	case *query.TruncateStmt:
		if len(s.Tables) == 0 {
			return nil, fmt.Errorf("compile: TRUNCATE without tables")
		}
		return h.TruncateTables(s.Tables)
	}
	return nil, fmt.Errorf("compile: unsupported DDL statement %T", stmt)
}

// createTable renders CREATE TABLE followed by index and comment statements.
// Foreign keys are declared inline when requested or when the dialect cannot
// add them later.
func (c *Compiler) createTable(s *query.CreateTableStmt) ([]string, error) {
	h := c.helper
	t := s.Table
	if t == nil {
		return nil, fmt.Errorf("compile: CREATE TABLE without table")
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("compile: table %s has no columns", t.Name)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.IfNotExists {
		if !h.Capabilities().IfNotExists {
			return nil, dialect.Unsupported(h.Name(), "CREATE TABLE IF NOT EXISTS", "")
		}
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(h.QuoteIdentifier(t.Name))
	sb.WriteString(" (\n")

	var lines []string
	for _, col := range t.Columns {
		def, err := h.ColumnDefinition(t, col)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		lines = append(lines, def)
	}
	if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) > 0 && !h.InlinePrimaryKey(t) {
		lines = append(lines, h.PrimaryKeyClause(t.PrimaryKey))
	}
	if s.WithForeignKeys || !h.Capabilities().AlterConstraints {
		for _, fk := range t.ForeignKeys {
			lines = append(lines, h.ForeignKeyClause(fk))
		}
	}
	for i, line := range lines {
		sb.WriteString("  ")
		sb.WriteString(line)
		if i < len(lines)-1 {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(")")
	sb.WriteString(h.TableSuffix(t))

	batch := []string{sb.String()}
	for _, idx := range t.Indexes {
		stmt, err := h.CreateIndex(t.Name, idx)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		batch = append(batch, stmt)
	}
	return append(batch, h.CommentStatements(t)...), nil
}

func (c *Compiler) alterTable(s *query.AlterTableStmt) ([]string, error) {
	h := c.helper
	t := s.Table
	if t == nil {
		return nil, fmt.Errorf("compile: ALTER TABLE without table")
	}
	if len(s.Actions) == 0 {
		return nil, fmt.Errorf("compile: ALTER TABLE %s without actions", t.Name)
	}

	var batch []string
	for _, action := range s.Actions {
		var (
			stmts []string
			stmt  string
			err   error
		)
		switch a := action.(type) {
		case *query.AddColumnAction:
			stmts, err = h.AddColumn(t, a.Column)
		case *query.DropColumnAction:
			stmt, err = h.DropColumn(t.Name, a.Name)
		case *query.ModifyColumnAction:
			stmts, err = h.ModifyColumn(t, a.From, a.To)
		case *query.RenameColumnAction:
			stmt, err = h.RenameColumn(t.Name, a.From, a.To)
		case *query.AddPrimaryKeyAction:
			stmt, err = h.AddPrimaryKey(t.Name, a.PrimaryKey)
		case *query.DropPrimaryKeyAction:
			stmt, err = h.DropPrimaryKey(t.Name, a.PrimaryKey)
		case *query.AddForeignKeyAction:
			stmt, err = h.AddForeignKey(t.Name, a.ForeignKey)
		case *query.DropForeignKeyAction:
			stmt, err = h.DropForeignKey(t.Name, a.ForeignKey)
		case *query.SetCommentAction:
			if tc, ok := h.(dialect.TableCommenter); ok {
				stmt = tc.SetTableComment(t.Name, a.Comment)
				break
			}
			stmts, err = c.tableOptions(&core.Table{Name: t.Name, Comment: a.Comment}, "COMMENT")
		case *query.SetEngineAction:
			stmts, err = c.tableOptions(&core.Table{Name: t.Name, Engine: a.Engine}, "ENGINE")
		default:
			err = fmt.Errorf("compile: unsupported ALTER TABLE action %T", action)
		}
		if err != nil {
			return nil, err
		}
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		batch = append(batch, stmts...)
	}
	return batch, nil
}

// tableOptions changes table level attributes. Dialects with separate
// comment statements use them, the others accept the CREATE TABLE suffix
// after ALTER TABLE. An empty value cannot be expressed either way.
func (c *Compiler) tableOptions(opts *core.Table, option string) ([]string, error) {
	h := c.helper
	if stmts := h.CommentStatements(opts); len(stmts) > 0 {
		return stmts, nil
	}
	if suffix := h.TableSuffix(opts); suffix != "" {
		return []string{"ALTER TABLE " + h.QuoteIdentifier(opts.Name) + suffix}, nil
	}
	return nil, dialect.Unsupported(h.Name(), "ALTER TABLE "+option, "no syntax for this table option")
}
