package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"sqlkit/internal/compile"
	"sqlkit/internal/core"
	sqlitedialect "sqlkit/internal/dialect/sqlite"
	"sqlkit/internal/diff"
	"sqlkit/internal/introspect"
	"sqlkit/internal/query"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func exec(t *testing.T, db *sql.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
}

func TestIntrospect(t *testing.T) {
	db := openDB(t)
	exec(t, db,
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email VARCHAR(100) NOT NULL UNIQUE,
			active BOOLEAN NOT NULL DEFAULT 1,
			note TEXT DEFAULT 'it''s'
		)`,
		`CREATE TABLE orders (
			id BIGINT NOT NULL,
			line INTEGER NOT NULL,
			user_id BIGINT REFERENCES users ON DELETE CASCADE,
			total DECIMAL(12,2),
			PRIMARY KEY (id, line)
		)`,
		`CREATE INDEX idx_orders_user ON orders (user_id, total DESC)`,
		`CREATE INDEX idx_orders_expr ON orders (lower(user_id))`,
	)

	s, err := New().Introspect(context.Background(), db, introspect.Options{})
	require.NoError(t, err)
	assert.Equal(t, "main", s.Name)
	require.Len(t, s.Tables, 2, "sqlite_sequence is skipped")

	orders, users := s.Tables[0], s.Tables[1]
	assert.Equal(t, "orders", orders.Name)
	assert.Equal(t, []string{"id", "line"}, orders.PrimaryKey.Columns)
	assert.False(t, orders.FindColumn("id").AutoIncrement)
	assert.Equal(t, core.TypeDecimal, orders.FindColumn("total").Type)

	require.Len(t, orders.Indexes, 1)
	assert.Equal(t, []core.IndexColumn{{Name: "user_id"}, {Name: "total", Desc: true}}, orders.Indexes[0].Columns)

	require.Len(t, orders.ForeignKeys, 1)
	assert.Equal(t, &core.ForeignKey{
		Name:       "fk_orders_user_id",
		Columns:    []string{"user_id"},
		RefTable:   "users",
		RefColumns: []string{"id"},
		OnDelete:   core.RefActionCascade,
	}, orders.ForeignKeys[0])

	id := users.FindColumn("id")
	assert.True(t, id.AutoIncrement)
	assert.True(t, id.Mandatory)
	assert.Empty(t, users.Indexes, "UNIQUE constraint indexes are skipped")
	assert.Equal(t, "1", *users.FindColumn("active").DefaultValue)
	assert.Equal(t, "it's", *users.FindColumn("note").DefaultValue)
	assert.Equal(t, core.TypeClob, users.FindColumn("note").Type)
}

func TestIntrospectRoundTrip(t *testing.T) {
	target := &core.Schema{Tables: []*core.Table{
		core.NewTable("users").
			AddColumn(&core.Column{Name: "id", Type: core.TypeID, AutoIncrement: true, Mandatory: true}).
			AddColumn(&core.Column{Name: "email", Type: core.TypeString, Size: 100, Mandatory: true}).
			AddColumn(&core.Column{Name: "active", Type: core.TypeBoolean, Mandatory: true, DefaultValue: core.StrPtr("true")}).
			AddColumn(&core.Column{Name: "status", Type: core.TypeString, Size: 10, DefaultValue: core.StrPtr("new")}).
			SetPrimaryKey("id").
			AddIndex("uq_users_email", true, "email"),
		core.NewTable("orders").
			AddColumn(&core.Column{Name: "id", Type: core.TypeID, AutoIncrement: true, Mandatory: true}).
			AddColumn(&core.Column{Name: "user_id", Type: core.TypeLong, Mandatory: true}).
			AddColumn(&core.Column{Name: "placed", Type: core.TypeDateTime}).
			SetPrimaryKey("id").
			AddForeignKey(&core.ForeignKey{Name: "fk_orders_user", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}, OnDelete: core.RefActionCascade}),
	}}

	h := sqlitedialect.New()
	c := compile.New(h)
	db := openDB(t)
	for _, tbl := range target.TopologicalTables() {
		stmt, err := c.Compile(query.CreateTable(tbl))
		require.NoError(t, err)
		exec(t, db, stmt.Batch()...)
	}

	got, err := New().Introspect(context.Background(), db, introspect.Options{Concurrency: 2})
	require.NoError(t, err)

	d := diff.Diff(target, got, diff.Options{Helper: h, IgnoreComments: true})
	assert.True(t, d.IsEmpty(), d.String())
}

func TestIntrospectTableFilter(t *testing.T) {
	db := openDB(t)
	exec(t, db, `CREATE TABLE a (x INTEGER)`, `CREATE TABLE b (y INTEGER)`)

	s, err := New().Introspect(context.Background(), db, introspect.Options{Tables: []string{"B"}})
	require.NoError(t, err)
	require.Len(t, s.Tables, 1)
	assert.Equal(t, "b", s.Tables[0].Name)
}
