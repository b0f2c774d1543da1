// Package sqlite extracts schemas from SQLite databases through
// sqlite_master and the table_info, index_list, index_xinfo and
// foreign_key_list pragmas.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	sqlitedialect "sqlkit/internal/dialect/sqlite"
	"sqlkit/internal/introspect"
)

func init() {
	introspect.Register(dialect.SQLite, New)
}

type sqliteIntrospecter struct {
	helper *sqlitedialect.Helper
}

func New() introspect.Introspecter {
	return &sqliteIntrospecter{helper: sqlitedialect.New()}
}

type tableRow struct {
	Name string `db:"name"`
	SQL  string `db:"sql"`
}

func (i *sqliteIntrospecter) Introspect(ctx context.Context, db *sql.DB, opts introspect.Options) (*core.Schema, error) {
	x := sqlx.NewDb(db, "sqlite")

	var rows []tableRow
	err := x.SelectContext(ctx, &rows, `
		SELECT name AS name, COALESCE(sql, '') AS sql
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	ddl := make(map[string]string, len(rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if sqlitedialect.IsInternalTable(r.Name) {
			continue
		}
		ddl[r.Name] = r.SQL
		names = append(names, r.Name)
	}

	tables, err := introspect.ExtractTables(ctx, names, opts, func(ctx context.Context, name string) (*core.Table, error) {
		t := &core.Table{Name: name}
		if err := i.columns(ctx, x, t, ddl[name]); err != nil {
			return nil, err
		}
		if err := i.indexes(ctx, x, t); err != nil {
			return nil, err
		}
		if err := i.foreignKeys(ctx, x, t); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return &core.Schema{Name: "main", Tables: tables}, nil
}

type columnRow struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull bool           `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

func (i *sqliteIntrospecter) tableInfo(ctx context.Context, db *sqlx.DB, table string) ([]columnRow, error) {
	var rows []columnRow
	err := db.SelectContext(ctx, &rows, `
		SELECT cid, name, type, "notnull" AS "notnull", dflt_value, pk
		FROM pragma_table_info(?)
		ORDER BY cid
	`, table)
	return rows, err
}

// columns reads the column list and the primary key. A single integer
// primary key column is auto-increment when the table was declared with
// AUTOINCREMENT; as rowid alias it can never be NULL.
func (i *sqliteIntrospecter) columns(ctx context.Context, db *sqlx.DB, t *core.Table, tableSQL string) error {
	rows, err := i.tableInfo(ctx, db, t.Name)
	if err != nil {
		return err
	}

	var pk []columnRow
	for _, r := range rows {
		ct, err := i.helper.ParseSQLType(r.Type)
		if err != nil {
			return fmt.Errorf("column %s: %w", r.Name, err)
		}
		col := &core.Column{Name: r.Name, Mandatory: r.NotNull}
		ct.Apply(col)
		if r.Default.Valid {
			col.DefaultValue = introspect.NormalizeDefault(r.Default.String)
		}
		t.Columns = append(t.Columns, col)
		if r.PK > 0 {
			pk = append(pk, r)
		}
	}

	if len(pk) == 0 {
		return nil
	}
	sort.Slice(pk, func(a, b int) bool { return pk[a].PK < pk[b].PK })
	t.PrimaryKey = &core.PrimaryKey{}
	for _, r := range pk {
		t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, r.Name)
	}
	if len(pk) == 1 && strings.Contains(strings.ToUpper(tableSQL), "AUTOINCREMENT") {
		col := t.FindColumn(pk[0].Name)
		if col.Type.IsIntegral() {
			col.AutoIncrement = true
			col.Mandatory = true
			col.DefaultValue = nil
		}
	}
	return nil
}

type indexRow struct {
	Name   string `db:"name"`
	Unique bool   `db:"is_unique"`
	Origin string `db:"origin"`
}

type indexColumnRow struct {
	Name sql.NullString `db:"name"`
	Desc bool           `db:"descending"`
}

// indexes reads indexes created with CREATE INDEX. Automatic indexes for
// PRIMARY KEY and UNIQUE constraints and expression indexes are skipped.
func (i *sqliteIntrospecter) indexes(ctx context.Context, db *sqlx.DB, t *core.Table) error {
	var rows []indexRow
	err := db.SelectContext(ctx, &rows, `
		SELECT name, "unique" AS is_unique, origin
		FROM pragma_index_list(?)
		ORDER BY name
	`, t.Name)
	if err != nil {
		return err
	}

	for _, r := range rows {
		if r.Origin != "c" || strings.HasPrefix(r.Name, "sqlite_autoindex_") {
			continue
		}
		var cols []indexColumnRow
		err := db.SelectContext(ctx, &cols, `
			SELECT name, "desc" AS descending
			FROM pragma_index_xinfo(?)
			WHERE key = 1
			ORDER BY seqno
		`, r.Name)
		if err != nil {
			return fmt.Errorf("index %s: %w", r.Name, err)
		}

		idx := &core.Index{Name: r.Name, Unique: r.Unique}
		for _, c := range cols {
			if !c.Name.Valid {
				idx = nil
				break
			}
			idx.Columns = append(idx.Columns, core.IndexColumn{Name: c.Name.String, Desc: c.Desc})
		}
		if idx != nil {
			t.Indexes = append(t.Indexes, idx)
		}
	}
	return nil
}

type foreignKeyRow struct {
	ID       int            `db:"id"`
	Seq      int            `db:"seq"`
	RefTable string         `db:"ref_table"`
	From     string         `db:"from_column"`
	To       sql.NullString `db:"to_column"`
	OnUpdate string         `db:"on_update"`
	OnDelete string         `db:"on_delete"`
}

// foreignKeys reads foreign keys. SQLite keeps no constraint names, so the
// names are derived from table and columns. A reference without target
// columns points at the primary key of the referenced table.
func (i *sqliteIntrospecter) foreignKeys(ctx context.Context, db *sqlx.DB, t *core.Table) error {
	var rows []foreignKeyRow
	err := db.SelectContext(ctx, &rows, `
		SELECT id, seq, "table" AS ref_table, "from" AS from_column, "to" AS to_column, on_update, on_delete
		FROM pragma_foreign_key_list(?)
		ORDER BY id, seq
	`, t.Name)
	if err != nil {
		return err
	}

	byID := make(map[int]*core.ForeignKey)
	var order []int
	for _, r := range rows {
		fk, ok := byID[r.ID]
		if !ok {
			onUpdate, err := introspect.ReferentialAction(r.OnUpdate)
			if err != nil {
				return err
			}
			onDelete, err := introspect.ReferentialAction(r.OnDelete)
			if err != nil {
				return err
			}
			fk = &core.ForeignKey{RefTable: r.RefTable, OnUpdate: onUpdate, OnDelete: onDelete}
			byID[r.ID] = fk
			order = append(order, r.ID)
		}
		fk.Columns = append(fk.Columns, r.From)
		if r.To.Valid && r.To.String != "" {
			fk.RefColumns = append(fk.RefColumns, r.To.String)
		}
	}

	for _, id := range order {
		fk := byID[id]
		if len(fk.RefColumns) == 0 {
			ref, err := i.tableInfo(ctx, db, fk.RefTable)
			if err != nil {
				return fmt.Errorf("foreign key target %s: %w", fk.RefTable, err)
			}
			sort.Slice(ref, func(a, b int) bool { return ref[a].PK < ref[b].PK })
			for _, c := range ref {
				if c.PK > 0 {
					fk.RefColumns = append(fk.RefColumns, c.Name)
				}
			}
		}
		fk.Name = "fk_" + t.Name + "_" + strings.Join(fk.Columns, "_")
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return nil
}
