package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"sqlkit/internal/core"
	"sqlkit/internal/introspect"
)

type columnRow struct {
	Name      string         `db:"column_name"`
	Type      string         `db:"column_type"`
	Nullable  string         `db:"is_nullable"`
	Default   sql.NullString `db:"column_default"`
	Extra     sql.NullString `db:"extra"`
	Comment   sql.NullString `db:"column_comment"`
	Collation sql.NullString `db:"collation_name"`
}

func (ic *introspectCtx) columns(ctx context.Context, t *core.Table) error {
	var rows []columnRow
	err := ic.db.SelectContext(ctx, &rows, `
		SELECT
			column_name AS column_name,
			column_type AS column_type,
			is_nullable AS is_nullable,
			column_default AS column_default,
			extra AS extra,
			column_comment AS column_comment,
			collation_name AS collation_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`, t.Name)
	if err != nil {
		return err
	}

	for _, r := range rows {
		raw := r.Type
		if r.Collation.Valid {
			raw += " collate " + r.Collation.String
		}
		ct, err := ic.helper.ParseSQLType(raw)
		if err != nil {
			return fmt.Errorf("column %s: %w", r.Name, err)
		}

		extra := strings.ToLower(r.Extra.String)
		col := &core.Column{
			Name:          r.Name,
			Mandatory:     r.Nullable == "NO",
			AutoIncrement: strings.Contains(extra, "auto_increment"),
			Comment:       r.Comment.String,
		}
		ct.Apply(col)
		if r.Default.Valid && !col.AutoIncrement {
			col.DefaultValue = ic.defaultValue(r.Default.String, extra)
		}
		t.Columns = append(t.Columns, col)
	}
	return nil
}

// defaultValue normalizes COLUMN_DEFAULT. MySQL reports literals unquoted and
// expressions (DEFAULT_GENERATED) in parentheses; MariaDB quotes literals.
func (ic *introspectCtx) defaultValue(raw, extra string) *string {
	if ic.server.quotesDefaults() || strings.Contains(extra, "default_generated") {
		return introspect.NormalizeDefault(raw)
	}
	return &raw
}

type indexRow struct {
	Name      string         `db:"index_name"`
	NonUnique int            `db:"non_unique"`
	Column    sql.NullString `db:"column_name"`
	Collation sql.NullString `db:"collation"`
}

// indexes reads PRIMARY into the primary key and the rest into indexes.
// Functional indexes are skipped, as are the indexes MySQL creates by
// itself for foreign keys.
func (ic *introspectCtx) indexes(ctx context.Context, t *core.Table) error {
	var rows []indexRow
	err := ic.db.SelectContext(ctx, &rows, `
		SELECT
			index_name AS index_name,
			non_unique AS non_unique,
			column_name AS column_name,
			collation AS collation
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index
	`, t.Name)
	if err != nil {
		return err
	}

	var (
		order      []string
		byName     = make(map[string]*core.Index)
		functional = make(map[string]bool)
	)
	for _, r := range rows {
		idx, ok := byName[r.Name]
		if !ok {
			idx = &core.Index{Name: r.Name, Unique: r.NonUnique == 0}
			byName[r.Name] = idx
			order = append(order, r.Name)
		}
		if !r.Column.Valid {
			functional[r.Name] = true
			continue
		}
		idx.Columns = append(idx.Columns, core.IndexColumn{Name: r.Column.String, Desc: r.Collation.String == "D"})
	}

	for _, name := range order {
		idx := byName[name]
		switch {
		case functional[name]:
			continue
		case strings.EqualFold(name, "PRIMARY"):
			t.PrimaryKey = &core.PrimaryKey{Columns: idx.Names()}
		case ic.foreignKeyIndex(t, idx):
			continue
		default:
			t.Indexes = append(t.Indexes, idx)
		}
	}
	return nil
}

func (ic *introspectCtx) foreignKeyIndex(t *core.Table, idx *core.Index) bool {
	if idx.Unique {
		return false
	}
	fk := t.FindForeignKey(idx.Name)
	return fk != nil && slices.EqualFunc(fk.Columns, idx.Names(), strings.EqualFold)
}

type foreignKeyRow struct {
	Name      string `db:"constraint_name"`
	Column    string `db:"column_name"`
	RefTable  string `db:"referenced_table_name"`
	RefColumn string `db:"referenced_column_name"`
	OnUpdate  string `db:"update_rule"`
	OnDelete  string `db:"delete_rule"`
}

func (ic *introspectCtx) foreignKeys(ctx context.Context, t *core.Table) error {
	var rows []foreignKeyRow
	err := ic.db.SelectContext(ctx, &rows, `
		SELECT
			k.constraint_name AS constraint_name,
			k.column_name AS column_name,
			k.referenced_table_name AS referenced_table_name,
			k.referenced_column_name AS referenced_column_name,
			r.update_rule AS update_rule,
			r.delete_rule AS delete_rule
		FROM information_schema.key_column_usage k
		JOIN information_schema.referential_constraints r
			ON r.constraint_schema = k.constraint_schema
			AND r.constraint_name = k.constraint_name
			AND r.table_name = k.table_name
		WHERE k.table_schema = DATABASE() AND k.table_name = ? AND k.referenced_table_name IS NOT NULL
		ORDER BY k.constraint_name, k.ordinal_position
	`, t.Name)
	if err != nil {
		return err
	}

	for _, r := range rows {
		fk := t.FindForeignKey(r.Name)
		if fk == nil {
			onUpdate, err := introspect.ReferentialAction(r.OnUpdate)
			if err != nil {
				return fmt.Errorf("foreign key %s: %w", r.Name, err)
			}
			onDelete, err := introspect.ReferentialAction(r.OnDelete)
			if err != nil {
				return fmt.Errorf("foreign key %s: %w", r.Name, err)
			}
			fk = &core.ForeignKey{Name: r.Name, RefTable: r.RefTable, OnUpdate: onUpdate, OnDelete: onDelete}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
		fk.Columns = append(fk.Columns, r.Column)
		fk.RefColumns = append(fk.RefColumns, r.RefColumn)
	}
	return nil
}
