package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a single problem found during schema validation.
type ValidationError struct {
	Entity  string
	Name    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in %s %q field %q: %s", e.Entity, e.Name, e.Field, e.Message)
	}
	return fmt.Sprintf("validation error in %s %q: %s", e.Entity, e.Name, e.Message)
}

// validator collects problems instead of stopping at the first one.
type validator struct {
	errs []error
}

func (v *validator) add(entity, name, field, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{Entity: entity, Name: name, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the whole schema and returns every problem found, joined
// with errors.Join. Each joined error is a *ValidationError.
func (s *Schema) Validate() error {
	if s == nil {
		return &ValidationError{Entity: "schema", Message: "schema is nil"}
	}
	v := &validator{}
	seen := make(map[string]bool, len(s.Tables))
	for i, t := range s.Tables {
		if t == nil {
			v.add("schema", s.Name, "", "table at index %d is nil", i)
			continue
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			v.add("schema", s.Name, "", "duplicate table name %q", t.Name)
		}
		seen[key] = true
		v.table(t)
	}
	for _, t := range s.Tables {
		if t != nil {
			v.foreignKeyTargets(s, t)
		}
	}
	return errors.Join(v.errs...)
}

// Validate checks a single table in isolation. Foreign key targets are not
// resolved because they live outside the table.
func (t *Table) Validate() error {
	v := &validator{}
	v.table(t)
	return errors.Join(v.errs...)
}

func (v *validator) table(t *Table) {
	if strings.TrimSpace(t.Name) == "" {
		v.add("table", "(empty)", "", "table name is empty")
	}
	if len(t.Columns) == 0 {
		v.add("table", t.Name, "", "table has no columns")
	}

	seenCols := make(map[string]bool, len(t.Columns))
	autoIncrement := 0
	for i, c := range t.Columns {
		if c == nil {
			v.add("table", t.Name, "", "column at index %d is nil", i)
			continue
		}
		key := strings.ToLower(c.Name)
		if seenCols[key] {
			v.add("table", t.Name, "", "duplicate column name %q", c.Name)
		}
		seenCols[key] = true
		if c.AutoIncrement {
			autoIncrement++
		}
		v.column(t, c)
	}
	if autoIncrement > 1 {
		v.add("table", t.Name, "", "at most one auto-increment column is allowed, found %d", autoIncrement)
	}

	if pk := t.PrimaryKey; pk != nil {
		if len(pk.Columns) == 0 {
			v.add("primary key", t.Name, "", "primary key has no columns")
		}
		v.columnRefs(t, "primary key", pk.Name, pk.Columns)
	}

	seenIdx := make(map[string]bool, len(t.Indexes))
	for i, idx := range t.Indexes {
		if idx == nil {
			v.add("table", t.Name, "", "index at index %d is nil", i)
			continue
		}
		if idx.Name != "" {
			key := strings.ToLower(idx.Name)
			if seenIdx[key] {
				v.add("table", t.Name, "", "duplicate index name %q", idx.Name)
			}
			seenIdx[key] = true
		}
		if len(idx.Columns) == 0 {
			v.add("index", idx.Name, "", "index has no columns")
		}
		v.columnRefs(t, "index", idx.Name, idx.Names())
	}

	seenFK := make(map[string]bool, len(t.ForeignKeys))
	for i, fk := range t.ForeignKeys {
		if fk == nil {
			v.add("table", t.Name, "", "foreign key at index %d is nil", i)
			continue
		}
		if fk.Name != "" {
			key := strings.ToLower(fk.Name)
			if seenFK[key] {
				v.add("table", t.Name, "", "duplicate foreign key name %q", fk.Name)
			}
			seenFK[key] = true
		}
		if len(fk.Columns) == 0 {
			v.add("foreign key", fk.Name, "", "foreign key has no columns")
		}
		if len(fk.Columns) != len(fk.RefColumns) {
			v.add("foreign key", fk.Name, "", "column count %d does not match referenced column count %d", len(fk.Columns), len(fk.RefColumns))
		}
		if strings.TrimSpace(fk.RefTable) == "" {
			v.add("foreign key", fk.Name, "refTable", "referenced table is empty")
		}
		v.columnRefs(t, "foreign key", fk.Name, fk.Columns)
	}
}

func (v *validator) column(t *Table, c *Column) {
	if strings.TrimSpace(c.Name) == "" {
		v.add("column", t.Name+".(empty)", "", "column name is empty")
		return
	}
	name := t.Name + "." + c.Name
	if c.Type == TypeUnknown || int(c.Type) >= len(dbTypeNames) {
		v.add("column", name, "type", "unknown column type")
		return
	}
	if c.Size < 0 || c.Precision < 0 {
		v.add("column", name, "size", "size and precision must not be negative")
	}
	if c.Type.SizeRequired() && c.Size <= 0 {
		v.add("column", name, "size", "%s columns require a positive size", c.Type)
	}
	if c.Type.SupportsPrecision() && c.Size > 0 && c.Precision > c.Size {
		v.add("column", name, "precision", "precision %d exceeds size %d", c.Precision, c.Size)
	}
	if !c.Type.SupportsPrecision() && c.Precision != 0 {
		v.add("column", name, "precision", "%s columns do not take a precision", c.Type)
	}
	if c.AutoIncrement && !c.Type.IsIntegral() {
		v.add("column", name, "autoIncrement", "auto-increment requires an integral type, got %s", c.Type)
	}
	if c.Binary && !c.Type.IsTextual() {
		v.add("column", name, "binary", "binary collation only applies to textual columns")
	}
}

func (v *validator) columnRefs(t *Table, entity, name string, cols []string) {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		key := strings.ToLower(c)
		if seen[key] {
			v.add(entity, name, "columns", "column %q listed twice", c)
		}
		seen[key] = true
		if t.FindColumn(c) == nil {
			v.add(entity, name, "columns", "column %q does not exist in table %q", c, t.Name)
		}
	}
}

func (v *validator) foreignKeyTargets(s *Schema, t *Table) {
	for _, fk := range t.ForeignKeys {
		if fk == nil || strings.TrimSpace(fk.RefTable) == "" {
			continue
		}
		ref := s.FindTable(fk.RefTable)
		if ref == nil {
			v.add("foreign key", fk.Name, "refTable", "referenced table %q does not exist", fk.RefTable)
			continue
		}
		for i, rc := range fk.RefColumns {
			refCol := ref.FindColumn(rc)
			if refCol == nil {
				v.add("foreign key", fk.Name, "refColumns", "referenced column %q does not exist in table %q", rc, ref.Name)
				continue
			}
			if i >= len(fk.Columns) {
				continue
			}
			if col := t.FindColumn(fk.Columns[i]); col != nil && col.Type.Canonical() != refCol.Type.Canonical() {
				v.add("foreign key", fk.Name, "columns", "column %q (%s) does not match referenced column %q (%s)",
					col.Name, col.Type, refCol.Name, refCol.Type)
			}
		}
		if fk.OnDelete == RefActionSetNull {
			for _, c := range fk.Columns {
				if col := t.FindColumn(c); col != nil && col.Mandatory {
					v.add("foreign key", fk.Name, "onDelete", "SET NULL on mandatory column %q", col.Name)
				}
			}
		}
	}
}
