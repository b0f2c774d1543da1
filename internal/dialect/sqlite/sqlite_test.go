package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

func TestRowidPrimaryKey(t *testing.T) {
	h := New()
	tbl := core.NewTable("users").
		AddColumn(&core.Column{Name: "id", Type: core.TypeID, AutoIncrement: true, Mandatory: true}).
		AddColumn(&core.Column{Name: "name", Type: core.TypeString, Size: 50, Mandatory: true}).
		SetPrimaryKey("id")

	assert.True(t, h.InlinePrimaryKey(tbl))
	def, err := h.ColumnDefinition(tbl, tbl.FindColumn("id"))
	require.NoError(t, err)
	assert.Equal(t, `"id" INTEGER PRIMARY KEY AUTOINCREMENT`, def)

	def, err = h.ColumnDefinition(tbl, tbl.FindColumn("name"))
	require.NoError(t, err)
	assert.Equal(t, `"name" VARCHAR(50) NOT NULL`, def)

	composite := core.NewTable("pairs").
		AddColumn(&core.Column{Name: "a", Type: core.TypeInt}).
		AddColumn(&core.Column{Name: "b", Type: core.TypeInt}).
		SetPrimaryKey("a", "b")
	assert.False(t, h.InlinePrimaryKey(composite))
}

func TestUnsupportedAlters(t *testing.T) {
	h := New()
	tbl := &core.Table{Name: "t"}

	_, err := h.ModifyColumn(tbl, &core.Column{Name: "a", Type: core.TypeInt}, &core.Column{Name: "a", Type: core.TypeLong})
	assert.ErrorIs(t, err, dialect.ErrUnsupported)

	_, err = h.AddColumn(tbl, &core.Column{Name: "b", Type: core.TypeInt, Mandatory: true})
	assert.ErrorIs(t, err, dialect.ErrUnsupported)

	stmts, err := h.AddColumn(tbl, &core.Column{Name: "b", Type: core.TypeInt, Mandatory: true, DefaultValue: core.StrPtr("0")})
	require.NoError(t, err)
	assert.Equal(t, []string{`ALTER TABLE "t" ADD COLUMN "b" INTEGER DEFAULT 0 NOT NULL`}, stmts)

	_, err = h.AddForeignKey("t", &core.ForeignKey{Name: "fk"})
	assert.ErrorIs(t, err, dialect.ErrUnsupported)
}

func TestTruncateAndDrop(t *testing.T) {
	h := New()
	stmts, err := h.TruncateTables([]string{"c", "p"})
	require.NoError(t, err)
	assert.Equal(t, []string{`DELETE FROM "c"`, `DELETE FROM "p"`}, stmts)

	stmt, err := h.DropTable("t", true)
	require.NoError(t, err)
	assert.Equal(t, `DROP TABLE IF EXISTS "t"`, stmt)

	stmt, err = h.DropColumn("t", "c")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "t" DROP COLUMN "c"`, stmt)
}

func TestBoolLiterals(t *testing.T) {
	h := New()
	assert.Equal(t, "1", h.BoolLiteral(true))
	assert.Equal(t, "0", h.BoolLiteral(false))
}

func TestIsInternalTable(t *testing.T) {
	assert.True(t, IsInternalTable("sqlite_sequence"))
	assert.True(t, IsInternalTable("SQLITE_stat1"))
	assert.False(t, IsInternalTable("users"))
}
