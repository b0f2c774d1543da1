package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() *Schema {
	users := NewTable("users").
		AddColumn(&Column{Name: "id", Type: TypeID, AutoIncrement: true}).
		AddColumn(&Column{Name: "email", Type: TypeString, Size: 255, Mandatory: true}).
		AddColumn(&Column{Name: "balance", Type: TypeDecimal, Size: 12, Precision: 2, DefaultValue: StrPtr("0")}).
		SetPrimaryKey("id").
		AddIndex("idx_users_email", true, "email")

	orders := NewTable("orders").
		AddColumn(&Column{Name: "id", Type: TypeID}).
		AddColumn(&Column{Name: "user_id", Type: TypeLong, Mandatory: true}).
		SetPrimaryKey("id").
		AddForeignKey(&ForeignKey{Name: "fk_orders_user", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}, OnDelete: RefActionCascade})

	return &Schema{Name: "shop", Tables: []*Table{orders, users}}
}

func TestSchemaFinders(t *testing.T) {
	s := sampleSchema()

	t.Run("table case insensitive", func(t *testing.T) {
		tbl := s.FindTable("USERS")
		require.NotNil(t, tbl)
		assert.Equal(t, "users", tbl.Name)
		assert.Nil(t, s.FindTable("missing"))
	})

	t.Run("column index fk", func(t *testing.T) {
		users := s.FindTable("users")
		assert.NotNil(t, users.FindColumn("Email"))
		assert.Nil(t, users.FindColumn("name"))
		assert.NotNil(t, users.FindIndex("IDX_USERS_EMAIL"))
		orders := s.FindTable("orders")
		assert.NotNil(t, orders.FindForeignKey("fk_orders_user"))
		assert.Nil(t, orders.FindForeignKey("fk_other"))
	})

	t.Run("primary key membership", func(t *testing.T) {
		users := s.FindTable("users")
		assert.True(t, users.IsPrimaryKeyColumn("ID"))
		assert.False(t, users.IsPrimaryKeyColumn("email"))
		assert.Equal(t, "id", users.AutoIncrementColumn().Name)
		assert.Nil(t, s.FindTable("orders").AutoIncrementColumn())
	})

	t.Run("nil schema", func(t *testing.T) {
		var nilSchema *Schema
		assert.Nil(t, nilSchema.FindTable("users"))
	})
}

func TestColumnTypeString(t *testing.T) {
	assert.Equal(t, "string(64)", (&Column{Type: TypeString, Size: 64}).TypeString())
	assert.Equal(t, "decimal(10,2)", (&Column{Type: TypeDecimal, Size: 10, Precision: 2}).TypeString())
	assert.Equal(t, "datetime", (&Column{Type: TypeDateTime}).TypeString())
}

func TestSchemaClone(t *testing.T) {
	s := sampleSchema()
	c := s.Clone()
	require.Len(t, c.Tables, 2)

	c.FindTable("users").FindColumn("balance").DefaultValue = StrPtr("1")
	c.FindTable("users").PrimaryKey.Columns[0] = "other"
	c.FindTable("orders").ForeignKeys[0].RefColumns[0] = "other"

	assert.Equal(t, "0", *s.FindTable("users").FindColumn("balance").DefaultValue)
	assert.Equal(t, "id", s.FindTable("users").PrimaryKey.Columns[0])
	assert.Equal(t, "id", s.FindTable("orders").ForeignKeys[0].RefColumns[0])
}

func TestParseReferentialAction(t *testing.T) {
	tests := map[string]ReferentialAction{
		"cascade":     RefActionCascade,
		"SET_NULL":    RefActionSetNull,
		"set  null":   RefActionSetNull,
		"NO ACTION":   RefActionNoAction,
		"":            RefActionNone,
		"set default": RefActionSetDefault,
	}
	for in, want := range tests {
		got, err := ParseReferentialAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseReferentialAction("explode")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tbl := NewTable(" items ").
		AddColumn(&Column{Name: "code", Type: TypeString, Size: 10}).
		AddColumn(&Column{Name: "seq", Type: TypeInt, AutoIncrement: true}).
		AddColumn(&Column{Name: "parent", Type: TypeString, Size: 10}).
		SetPrimaryKey("code").
		AddIndex("", false, "parent").
		AddForeignKey(&ForeignKey{Columns: []string{"parent"}, RefTable: "items", RefColumns: []string{"code"}})
	s := &Schema{Tables: []*Table{tbl}}
	s.Normalize()

	assert.Equal(t, "items", tbl.Name)
	assert.True(t, tbl.FindColumn("code").Mandatory)
	assert.True(t, tbl.FindColumn("seq").Mandatory)
	assert.False(t, tbl.FindColumn("parent").Mandatory)
	assert.Equal(t, "pk_items", tbl.PrimaryKey.Name)
	assert.Equal(t, "idx_items_parent", tbl.Indexes[0].Name)
	assert.Equal(t, "fk_items_parent", tbl.ForeignKeys[0].Name)
}

func TestTopologicalTables(t *testing.T) {
	t.Run("references first", func(t *testing.T) {
		ordered := sampleSchema().TopologicalTables()
		require.Len(t, ordered, 2)
		assert.Equal(t, "users", ordered[0].Name)
		assert.Equal(t, "orders", ordered[1].Name)
	})

	t.Run("self reference and unknown target", func(t *testing.T) {
		a := NewTable("a").AddForeignKey(&ForeignKey{RefTable: "a"}).AddForeignKey(&ForeignKey{RefTable: "elsewhere"})
		b := NewTable("b")
		ordered := (&Schema{Tables: []*Table{a, b}}).TopologicalTables()
		assert.Equal(t, []*Table{a, b}, ordered)
	})

	t.Run("cycle keeps every table", func(t *testing.T) {
		a := NewTable("a").AddForeignKey(&ForeignKey{RefTable: "b"})
		b := NewTable("b").AddForeignKey(&ForeignKey{RefTable: "a"})
		ordered := (&Schema{Tables: []*Table{a, b}}).TopologicalTables()
		assert.ElementsMatch(t, []*Table{a, b}, ordered)
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid schema", func(t *testing.T) {
		require.NoError(t, sampleSchema().Validate())
	})

	t.Run("nil schema", func(t *testing.T) {
		var s *Schema
		assert.Error(t, s.Validate())
	})

	tests := []struct {
		name   string
		mutate func(s *Schema)
		want   string
	}{
		{"duplicate table", func(s *Schema) { s.Tables = append(s.Tables, NewTable("USERS").AddColumn(&Column{Name: "x", Type: TypeInt})) }, `duplicate table name "USERS"`},
		{"empty table name", func(s *Schema) { s.Tables[0].Name = " " }, "table name is empty"},
		{"no columns", func(s *Schema) { s.Tables = append(s.Tables, NewTable("empty")) }, "table has no columns"},
		{"duplicate column", func(s *Schema) {
			s.FindTable("users").AddColumn(&Column{Name: "EMAIL", Type: TypeString, Size: 5})
		}, `duplicate column name "EMAIL"`},
		{"missing size", func(s *Schema) { s.FindTable("users").FindColumn("email").Size = 0 }, "require a positive size"},
		{"precision over size", func(s *Schema) { s.FindTable("users").FindColumn("balance").Precision = 20 }, "precision 20 exceeds size 12"},
		{"precision on int", func(s *Schema) { s.FindTable("orders").FindColumn("user_id").Precision = 2 }, "do not take a precision"},
		{"unknown type", func(s *Schema) { s.FindTable("users").FindColumn("email").Type = TypeUnknown }, "unknown column type"},
		{"auto increment on string", func(s *Schema) { s.FindTable("users").FindColumn("email").AutoIncrement = true }, "auto-increment"},
		{"binary on int", func(s *Schema) { s.FindTable("orders").FindColumn("user_id").Binary = true }, "binary collation"},
		{"pk column missing", func(s *Schema) { s.FindTable("users").PrimaryKey.Columns = []string{"nope"} }, `column "nope" does not exist`},
		{"index column twice", func(s *Schema) { s.FindTable("users").AddIndex("idx_twice", false, "email", "EMAIL") }, "listed twice"},
		{"fk target table", func(s *Schema) { s.FindTable("orders").ForeignKeys[0].RefTable = "people" }, `referenced table "people" does not exist`},
		{"fk target column", func(s *Schema) { s.FindTable("orders").ForeignKeys[0].RefColumns = []string{"uid"} }, `referenced column "uid"`},
		{"fk arity", func(s *Schema) {
			s.FindTable("orders").ForeignKeys[0].RefColumns = []string{"id", "email"}
		}, "does not match referenced column count"},
		{"fk type mismatch", func(s *Schema) { s.FindTable("orders").FindColumn("user_id").Type = TypeInt }, "does not match referenced column"},
		{"set null on mandatory", func(s *Schema) { s.FindTable("orders").ForeignKeys[0].OnDelete = RefActionSetNull }, "SET NULL on mandatory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleSchema()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}

	t.Run("collects every problem", func(t *testing.T) {
		s := sampleSchema()
		s.FindTable("users").FindColumn("email").Size = 0
		s.FindTable("orders").ForeignKeys[0].RefTable = "people"
		err := s.Validate()
		require.Error(t, err)
		joined, ok := err.(interface{ Unwrap() []error })
		require.True(t, ok)
		assert.Len(t, joined.Unwrap(), 2)
	})

	t.Run("two auto increments", func(t *testing.T) {
		tbl := NewTable("t").
			AddColumn(&Column{Name: "a", Type: TypeInt, AutoIncrement: true}).
			AddColumn(&Column{Name: "b", Type: TypeInt, AutoIncrement: true})
		err := tbl.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at most one auto-increment")
	})
}
