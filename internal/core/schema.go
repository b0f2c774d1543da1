// Package core contains the in-memory description of a relational schema.
// It is the single model shared by parsers, extraction, comparison and DDL
// generation for every database we support.
package core

import (
	"fmt"
	"strings"
)

// Schema represents a set of tables.
type Schema struct {
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Tables []*Table `json:"tables" yaml:"tables"`
}

// Table represents a table in the schema.
type Table struct {
	Name        string        `json:"name" yaml:"name"`
	Comment     string        `json:"comment,omitempty" yaml:"comment,omitempty"`
	Engine      string        `json:"engine,omitempty" yaml:"engine,omitempty"`
	Columns     []*Column     `json:"columns" yaml:"columns"`
	PrimaryKey  *PrimaryKey   `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	Indexes     []*Index      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	ForeignKeys []*ForeignKey `json:"foreignKeys,omitempty" yaml:"foreignKeys,omitempty"`
}

// Column represents a single column inside a table.
//
// Size is the maximum length for string/char columns and the total number of
// digits for decimals; Precision is the number of fractional digits.
type Column struct {
	Name          string  `json:"name" yaml:"name"`
	Type          DBType  `json:"type" yaml:"type"`
	Size          int     `json:"size,omitempty" yaml:"size,omitempty"`
	Precision     int     `json:"precision,omitempty" yaml:"precision,omitempty"`
	Mandatory     bool    `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	Binary        bool    `json:"binary,omitempty" yaml:"binary,omitempty"`
	AutoIncrement bool    `json:"autoIncrement,omitempty" yaml:"autoIncrement,omitempty"`
	DefaultValue  *string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Comment       string  `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// PrimaryKey is the primary key constraint of a table.
type PrimaryKey struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Columns []string `json:"columns" yaml:"columns"`
}

// Index is a (possibly unique) secondary index.
type Index struct {
	Name    string        `json:"name" yaml:"name"`
	Columns []IndexColumn `json:"columns" yaml:"columns"`
	Unique  bool          `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// IndexColumn is one key part of an index.
type IndexColumn struct {
	Name string `json:"name" yaml:"name"`
	Desc bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// ForeignKey references the key of another (or the same) table.
type ForeignKey struct {
	Name       string            `json:"name" yaml:"name"`
	Columns    []string          `json:"columns" yaml:"columns"`
	RefTable   string            `json:"refTable" yaml:"refTable"`
	RefColumns []string          `json:"refColumns" yaml:"refColumns"`
	OnDelete   ReferentialAction `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
	OnUpdate   ReferentialAction `json:"onUpdate,omitempty" yaml:"onUpdate,omitempty"`
}

// ReferentialAction is an ENUM with all possible foreign key actions.
type ReferentialAction string

const (
	RefActionNone       ReferentialAction = ""
	RefActionCascade    ReferentialAction = "CASCADE"
	RefActionRestrict   ReferentialAction = "RESTRICT"
	RefActionSetNull    ReferentialAction = "SET NULL"
	RefActionSetDefault ReferentialAction = "SET DEFAULT"
	RefActionNoAction   ReferentialAction = "NO ACTION"
)

// ParseReferentialAction normalizes a referential action as written in
// schema files or reported by database catalogs.
func ParseReferentialAction(s string) (ReferentialAction, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
	switch ReferentialAction(normalized) {
	case RefActionNone, RefActionCascade, RefActionRestrict, RefActionSetNull, RefActionSetDefault, RefActionNoAction:
		return ReferentialAction(normalized), nil
	}
	return RefActionNone, fmt.Errorf("unknown referential action %q", s)
}

// GetName methods allow these types to be used with generic Named helpers.
func (t *Table) GetName() string      { return t.Name }
func (c *Column) GetName() string     { return c.Name }
func (i *Index) GetName() string      { return i.Name }
func (f *ForeignKey) GetName() string { return f.Name }

// NewTable creates an empty table.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// AddColumn appends a column and returns the table for chaining.
func (t *Table) AddColumn(col *Column) *Table {
	t.Columns = append(t.Columns, col)
	return t
}

// SetPrimaryKey sets the primary key columns.
func (t *Table) SetPrimaryKey(columns ...string) *Table {
	t.PrimaryKey = &PrimaryKey{Columns: columns}
	return t
}

// AddIndex appends an index on the given columns (ascending).
func (t *Table) AddIndex(name string, unique bool, columns ...string) *Table {
	idx := &Index{Name: name, Unique: unique}
	for _, c := range columns {
		idx.Columns = append(idx.Columns, IndexColumn{Name: c})
	}
	t.Indexes = append(t.Indexes, idx)
	return t
}

// AddForeignKey appends a foreign key.
func (t *Table) AddForeignKey(fk *ForeignKey) *Table {
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return t
}

// FindTable looks for a table by name inside a schema.
func (s *Schema) FindTable(name string) *Table {
	if s == nil {
		return nil
	}
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// FindColumn looks for a column by name inside a table.
func (t *Table) FindColumn(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// FindIndex looks for an index by name inside a table.
func (t *Table) FindIndex(name string) *Index {
	for _, i := range t.Indexes {
		if strings.EqualFold(i.Name, name) {
			return i
		}
	}
	return nil
}

// FindForeignKey looks for a foreign key by name inside a table.
func (t *Table) FindForeignKey(name string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.Name, name) {
			return fk
		}
	}
	return nil
}

// IsPrimaryKeyColumn reports whether the named column is part of the primary key.
func (t *Table) IsPrimaryKeyColumn(name string) bool {
	if t.PrimaryKey == nil {
		return false
	}
	for _, c := range t.PrimaryKey.Columns {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// AutoIncrementColumn returns the auto-increment column or nil.
func (t *Table) AutoIncrementColumn() *Column {
	for _, c := range t.Columns {
		if c.AutoIncrement {
			return c
		}
	}
	return nil
}

// Names returns the names of the columns in the index.
func (i *Index) Names() []string {
	names := make([]string, len(i.Columns))
	for idx, col := range i.Columns {
		names[idx] = col.Name
	}
	return names
}

// String returns a short description of a table.
func (t *Table) String() string {
	return fmt.Sprintf("Table: %s (%d cols, %d indexes, %d foreign keys)",
		t.Name, len(t.Columns), len(t.Indexes), len(t.ForeignKeys))
}

// TypeString renders the abstract type with its size, e.g. "string(64)" or "decimal(10,2)".
func (c *Column) TypeString() string {
	switch {
	case c.Type.SupportsPrecision() && c.Size > 0:
		return fmt.Sprintf("%s(%d,%d)", c.Type, c.Size, c.Precision)
	case c.Size > 0:
		return fmt.Sprintf("%s(%d)", c.Type, c.Size)
	}
	return c.Type.String()
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	out := &Schema{Name: s.Name, Tables: make([]*Table, len(s.Tables))}
	for i, t := range s.Tables {
		out.Tables[i] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Comment: t.Comment, Engine: t.Engine}
	for _, c := range t.Columns {
		cc := *c
		if c.DefaultValue != nil {
			v := *c.DefaultValue
			cc.DefaultValue = &v
		}
		out.Columns = append(out.Columns, &cc)
	}
	if t.PrimaryKey != nil {
		out.PrimaryKey = &PrimaryKey{Name: t.PrimaryKey.Name, Columns: append([]string(nil), t.PrimaryKey.Columns...)}
	}
	for _, idx := range t.Indexes {
		out.Indexes = append(out.Indexes, &Index{Name: idx.Name, Unique: idx.Unique, Columns: append([]IndexColumn(nil), idx.Columns...)})
	}
	for _, fk := range t.ForeignKeys {
		f := *fk
		f.Columns = append([]string(nil), fk.Columns...)
		f.RefColumns = append([]string(nil), fk.RefColumns...)
		out.ForeignKeys = append(out.ForeignKeys, &f)
	}
	return out
}

// StrPtr is a small helper for building default values.
func StrPtr(s string) *string { return &s }
