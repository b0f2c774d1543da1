// Package postgresql extracts schemas from PostgreSQL through
// information_schema and pg_catalog, restricted to current_schema().
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	pgdialect "sqlkit/internal/dialect/postgresql"
	"sqlkit/internal/introspect"
)

func init() {
	introspect.Register(dialect.PostgreSQL, New)
}

// relation resolves a table name of the current schema to its oid.
const relation = `(quote_ident(current_schema()) || '.' || quote_ident($1))::regclass`

type postgresqlIntrospecter struct {
	helper *pgdialect.Helper
}

func New() introspect.Introspecter {
	return &postgresqlIntrospecter{helper: pgdialect.New()}
}

type tableRow struct {
	Name    string `db:"table_name"`
	Comment string `db:"comment"`
}

func (i *postgresqlIntrospecter) Introspect(ctx context.Context, db *sql.DB, opts introspect.Options) (*core.Schema, error) {
	x := sqlx.NewDb(db, "postgres")

	var name string
	if err := x.GetContext(ctx, &name, "SELECT current_schema()"); err != nil {
		return nil, err
	}

	var rows []tableRow
	err := x.SelectContext(ctx, &rows, `
		SELECT
			t.table_name AS table_name,
			COALESCE(obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class'), '') AS comment
		FROM information_schema.tables t
		WHERE t.table_schema = current_schema() AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	comments := make(map[string]string, len(rows))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		comments[r.Name] = r.Comment
		names = append(names, r.Name)
	}

	tables, err := introspect.ExtractTables(ctx, names, opts, func(ctx context.Context, name string) (*core.Table, error) {
		t := &core.Table{Name: name, Comment: comments[name]}
		if err := i.columns(ctx, x, t); err != nil {
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
	return &core.Schema{Name: name, Tables: tables}, nil
}

type columnRow struct {
	Name      string         `db:"name"`
	Type      string         `db:"type"`
	NotNull   bool           `db:"not_null"`
	Default   sql.NullString `db:"default_value"`
	Identity  string         `db:"identity"`
	Comment   string         `db:"comment"`
	Collation string         `db:"collation"`
}

func (i *postgresqlIntrospecter) columns(ctx context.Context, db *sqlx.DB, t *core.Table) error {
	var rows []columnRow
	err := db.SelectContext(ctx, &rows, `
		SELECT
			a.attname AS name,
			format_type(a.atttypid, a.atttypmod) AS type,
			a.attnotnull AS not_null,
			pg_get_expr(d.adbin, d.adrelid) AS default_value,
			a.attidentity::text AS identity,
			COALESCE(col_description(a.attrelid, a.attnum), '') AS comment,
			COALESCE(co.collname, '') AS collation
		FROM pg_attribute a
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		LEFT JOIN pg_collation co ON co.oid = a.attcollation
		WHERE a.attrelid = `+relation+` AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum
	`, t.Name)
	if err != nil {
		return err
	}

	for _, r := range rows {
		raw := r.Type
		if r.Collation == "C" {
			raw += ` collate "C"`
		}
		ct, err := i.helper.ParseSQLType(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", r.Name, err)
		}
		col := &core.Column{Name: r.Name, Mandatory: r.NotNull, Comment: r.Comment}
		ct.Apply(col)

		def := strings.TrimSpace(r.Default.String)
		if r.Identity != "" || strings.HasPrefix(strings.ToLower(def), "nextval(") {
			col.AutoIncrement = true
		} else if r.Default.Valid {
			col.DefaultValue = introspect.NormalizeDefault(def)
		}
		t.Columns = append(t.Columns, col)
	}
	return nil
}

type indexRow struct {
	Name    string `db:"index_name"`
	Unique  bool   `db:"is_unique"`
	Primary bool   `db:"is_primary"`
	Column  string `db:"column_name"`
	Desc    bool   `db:"descending"`
}

// indexes reads the primary key and secondary indexes. Expression columns
// have no attribute and drop out of the join.
func (i *postgresqlIntrospecter) indexes(ctx context.Context, db *sqlx.DB, t *core.Table) error {
	var rows []indexRow
	err := db.SelectContext(ctx, &rows, `
		SELECT
			ic.relname AS index_name,
			ix.indisunique AS is_unique,
			ix.indisprimary AS is_primary,
			a.attname AS column_name,
			(ix.indoption[k.ord - 1] & 1) = 1 AS descending
		FROM pg_index ix
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		CROSS JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = k.attnum
		WHERE ix.indrelid = `+relation+`
		ORDER BY ic.relname, k.ord
	`, t.Name)
	if err != nil {
		return err
	}

	var current *core.Index
	for _, r := range rows {
		if r.Primary {
			if t.PrimaryKey == nil {
				t.PrimaryKey = &core.PrimaryKey{Name: r.Name}
			}
			t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, r.Column)
			continue
		}
		if current == nil || current.Name != r.Name {
			current = &core.Index{Name: r.Name, Unique: r.Unique}
			t.Indexes = append(t.Indexes, current)
		}
		current.Columns = append(current.Columns, core.IndexColumn{Name: r.Column, Desc: r.Desc})
	}
	return nil
}

type foreignKeyRow struct {
	Name      string `db:"constraint_name"`
	Column    string `db:"column_name"`
	RefTable  string `db:"ref_table"`
	RefColumn string `db:"ref_column"`
	OnUpdate  string `db:"on_update"`
	OnDelete  string `db:"on_delete"`
}

// pg_constraint stores rules as single letters.
var actionCodes = map[string]core.ReferentialAction{
	"a": core.RefActionNone,
	"r": core.RefActionRestrict,
	"c": core.RefActionCascade,
	"n": core.RefActionSetNull,
	"d": core.RefActionSetDefault,
}

func (i *postgresqlIntrospecter) foreignKeys(ctx context.Context, db *sqlx.DB, t *core.Table) error {
	var rows []foreignKeyRow
	err := db.SelectContext(ctx, &rows, `
		SELECT
			con.conname AS constraint_name,
			a.attname AS column_name,
			rc.relname AS ref_table,
			ra.attname AS ref_column,
			con.confupdtype::text AS on_update,
			con.confdeltype::text AS on_delete
		FROM pg_constraint con
		JOIN pg_class rc ON rc.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refnum
		WHERE con.conrelid = `+relation+` AND con.contype = 'f'
		ORDER BY con.conname, k.ord
	`, t.Name)
	if err != nil {
		return err
	}

	for _, r := range rows {
		fk := t.FindForeignKey(r.Name)
		if fk == nil {
			onUpdate, ok := actionCodes[r.OnUpdate]
			if !ok {
				return fmt.Errorf("foreign key %s: unknown update rule %q", r.Name, r.OnUpdate)
			}
			onDelete, ok := actionCodes[r.OnDelete]
			if !ok {
				return fmt.Errorf("foreign key %s: unknown delete rule %q", r.Name, r.OnDelete)
			}
			fk = &core.ForeignKey{Name: r.Name, RefTable: r.RefTable, OnUpdate: onUpdate, OnDelete: onDelete}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
		fk.Columns = append(fk.Columns, r.Column)
		fk.RefColumns = append(fk.RefColumns, r.RefColumn)
	}
	return nil
}
