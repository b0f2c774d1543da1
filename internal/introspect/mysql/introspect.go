// Package mysql extracts schemas from MySQL and MariaDB servers through
// information_schema of the current database.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	mysqldialect "sqlkit/internal/dialect/mysql"
	"sqlkit/internal/introspect"
)

func init() {
	introspect.Register(dialect.MySQL, New)
}

type introspecter struct {
	helper *mysqldialect.Helper
}

// introspectCtx carries what every per-table query needs.
type introspectCtx struct {
	db     *sqlx.DB
	helper *mysqldialect.Helper
	server serverInfo
}

func New() introspect.Introspecter {
	return &introspecter{helper: mysqldialect.New()}
}

type tableRow struct {
	Name    string         `db:"table_name"`
	Comment sql.NullString `db:"table_comment"`
	Engine  sql.NullString `db:"engine"`
}

func (i *introspecter) Introspect(ctx context.Context, db *sql.DB, opts introspect.Options) (*core.Schema, error) {
	x := sqlx.NewDb(db, "mysql")

	var name sql.NullString
	if err := x.GetContext(ctx, &name, "SELECT DATABASE()"); err != nil {
		return nil, err
	}
	if !name.Valid || name.String == "" {
		return nil, errors.New("mysql: no database selected")
	}

	server, err := detectServer(ctx, x)
	if err != nil {
		return nil, err
	}
	ic := &introspectCtx{db: x, helper: i.helper, server: server}

	var rows []tableRow
	err = x.SelectContext(ctx, &rows, `
		SELECT table_name AS table_name, table_comment AS table_comment, engine AS engine
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	byName := make(map[string]tableRow, len(rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
		names = append(names, r.Name)
	}

	tables, err := introspect.ExtractTables(ctx, names, opts, func(ctx context.Context, name string) (*core.Table, error) {
		r := byName[name]
		t := &core.Table{Name: r.Name, Comment: r.Comment.String, Engine: r.Engine.String}
		if err := ic.columns(ctx, t); err != nil {
			return nil, err
		}
		if err := ic.foreignKeys(ctx, t); err != nil {
			return nil, err
		}
		if err := ic.indexes(ctx, t); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}

	return &core.Schema{Name: name.String, Tables: tables}, nil
}
