package parser

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

func TestParseFileFormats(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		doc, err := ParseFile("testdata/shop.yaml")
		require.NoError(t, err)
		assert.Equal(t, dialect.SQLite, doc.Dialect)
		require.Len(t, doc.Schema.Tables, 2)

		users := doc.Schema.FindTable("users")
		assert.Equal(t, core.TypeID, users.FindColumn("id").Type)
		assert.True(t, users.FindColumn("id").Mandatory, "auto-increment columns are mandatory")
		assert.Equal(t, "pk_users", users.PrimaryKey.Name)
		assert.Equal(t, []core.IndexColumn{{Name: "email"}}, users.Indexes[0].Columns)

		fk := doc.Schema.FindTable("orders").ForeignKeys[0]
		assert.Equal(t, core.RefActionCascade, fk.OnDelete)
	})

	t.Run("json", func(t *testing.T) {
		doc, err := ParseFile("testdata/shop.json")
		require.NoError(t, err)
		assert.Empty(t, doc.Dialect)
		users := doc.Schema.FindTable("users")
		require.NotNil(t, users)
		assert.Equal(t, core.TypeLong, users.FindColumn("id").Type)
		assert.Equal(t, core.TypeString, users.FindColumn("nick").Type)
		assert.Equal(t, "anon", *users.FindColumn("nick").DefaultValue)
	})

	t.Run("mysql dump", func(t *testing.T) {
		doc, err := ParseFile("testdata/shop.sql")
		require.NoError(t, err)
		assert.Equal(t, dialect.MySQL, doc.Dialect)
		users := doc.Schema.FindTable("users")
		require.NotNil(t, users)
		assert.Equal(t, "InnoDB", users.Engine)
		assert.True(t, users.FindColumn("id").AutoIncrement)
	})

	t.Run("toml", func(t *testing.T) {
		doc, err := ParseFile("toml/testdata/shop.toml")
		require.NoError(t, err)
		assert.Equal(t, dialect.PostgreSQL, doc.Dialect)
		assert.Len(t, doc.Schema.Tables, 2)
	})
}

func TestParseFileErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := ParseFile("schema.xml")
		var unsupported *UnsupportedFormatError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "unsupported file format: schema.xml", err.Error())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ParseFile(filepath.Join(dir, "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "yaml unknown field", file: "a.yaml", content: "tables:\n  - name: t\n    colour: red\n", wantErr: "yaml"},
		{name: "yaml unknown type", file: "b.yml", content: "tables:\n  - name: t\n    columns:\n      - name: a\n        type: uuid\n", wantErr: "unknown column type"},
		{name: "json unknown field", file: "c.json", content: `{"tables": [], "owner": "x"}`, wantErr: "json"},
		{name: "bad action", file: "d.yaml", content: "tables:\n  - name: t\n    columns:\n      - {name: a, type: int}\n    foreignKeys:\n      - {name: f, columns: [a], refTable: t, refColumns: [a], onDelete: explode}\n", wantErr: "unknown referential action"},
		{name: "invalid model", file: "e.yaml", content: "tables:\n  - name: t\n", wantErr: "table has no columns"},
		{name: "bad dialect", file: "f.yaml", content: "dialect: db9\ntables: []\n", wantErr: "unsupported dialect"},
		{name: "bad dump", file: "g.sql", content: "CREATE TABLE (", wantErr: "failed to parse MySQL dump"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFile(write(tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteReadsBack(t *testing.T) {
	doc, err := ParseFile("testdata/shop.yaml")
	require.NoError(t, err)

	for _, format := range Formats {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "schema."+format)
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, Write(f, format, doc))
			require.NoError(t, f.Close())

			back, err := ParseFile(path)
			require.NoError(t, err)
			assert.Equal(t, doc.Dialect, back.Dialect)
			assert.Equal(t, doc.Schema, back.Schema)
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		err := Write(io.Discard, "xml", doc)
		assert.ErrorContains(t, err, "unsupported schema format: xml")
	})
}
