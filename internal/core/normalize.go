package core

import (
	"strings"
)

// Normalize fills in derived attributes so that schemas coming from different
// sources compare equal: names are trimmed, primary key columns become
// mandatory and unnamed constraints get deterministic names.
func (s *Schema) Normalize() {
	for _, t := range s.Tables {
		t.Normalize()
	}
}

// Normalize applies the schema-level normalization to one table.
func (t *Table) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	for _, c := range t.Columns {
		c.Name = strings.TrimSpace(c.Name)
		if c.AutoIncrement {
			c.Mandatory = true
		}
	}
	if t.PrimaryKey != nil {
		for _, name := range t.PrimaryKey.Columns {
			if c := t.FindColumn(name); c != nil {
				c.Mandatory = true
			}
		}
		if t.PrimaryKey.Name == "" {
			t.PrimaryKey.Name = "pk_" + t.Name
		}
	}
	for _, idx := range t.Indexes {
		if idx.Name == "" {
			idx.Name = "idx_" + t.Name + "_" + strings.Join(idx.Names(), "_")
		}
	}
	for _, fk := range t.ForeignKeys {
		if fk.Name == "" {
			fk.Name = "fk_" + t.Name + "_" + strings.Join(fk.Columns, "_")
		}
	}
}

// TopologicalTables returns the tables ordered so that every table comes
// after the tables its foreign keys reference. Self references are ignored;
// tables on a reference cycle keep their declaration order.
func (s *Schema) TopologicalTables() []*Table {
	index := make(map[string]int, len(s.Tables))
	for i, t := range s.Tables {
		index[strings.ToLower(t.Name)] = i
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(s.Tables))
	ordered := make([]*Table, 0, len(s.Tables))

	var visit func(i int)
	visit = func(i int) {
		if state[i] != unvisited {
			return
		}
		state[i] = visiting
		t := s.Tables[i]
		for _, fk := range t.ForeignKeys {
			j, ok := index[strings.ToLower(fk.RefTable)]
			if !ok || j == i || state[j] == visiting {
				continue
			}
			visit(j)
		}
		state[i] = done
		ordered = append(ordered, t)
	}
	for i := range s.Tables {
		visit(i)
	}
	return ordered
}
