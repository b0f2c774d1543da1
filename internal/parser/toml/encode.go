package toml

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

// Encode writes schema in the TOML schema format. Primary keys are written
// as table level lists and foreign keys as constraints, so the output reads
// back into an equal model.
func Encode(w io.Writer, schema *core.Schema, name dialect.Name) error {
	sf := schemaFile{
		Database: tomlDatabase{Name: schema.Name, Dialect: string(name)},
		Tables:   make([]tomlTable, 0, len(schema.Tables)),
	}
	for _, t := range schema.Tables {
		sf.Tables = append(sf.Tables, encodeTable(t))
	}
	if err := toml.NewEncoder(w).Encode(sf); err != nil {
		return fmt.Errorf("toml: encode error: %w", err)
	}
	return nil
}

func encodeTable(t *core.Table) tomlTable {
	tt := tomlTable{
		Name:    t.Name,
		Comment: t.Comment,
		Engine:  t.Engine,
		Columns: make([]tomlColumn, 0, len(t.Columns)),
	}
	if t.PrimaryKey != nil {
		tt.PrimaryKey = t.PrimaryKey.Columns
	}
	for _, c := range t.Columns {
		tc := tomlColumn{
			Name:          c.Name,
			Type:          c.Type.String(),
			Size:          c.Size,
			Precision:     c.Precision,
			Mandatory:     c.Mandatory,
			Binary:        c.Binary,
			AutoIncrement: c.AutoIncrement,
			Comment:       c.Comment,
		}
		if c.DefaultValue != nil {
			tc.DefaultValue = *c.DefaultValue
		}
		tt.Columns = append(tt.Columns, tc)
	}
	for _, idx := range t.Indexes {
		ti := tomlIndex{Name: idx.Name, Unique: idx.Unique}
		for _, ic := range idx.Columns {
			name := ic.Name
			if ic.Desc {
				name += " DESC"
			}
			ti.Columns = append(ti.Columns, name)
		}
		tt.Indexes = append(tt.Indexes, ti)
	}
	for _, fk := range t.ForeignKeys {
		tt.Constraints = append(tt.Constraints, tomlConstraint{
			Name:              fk.Name,
			Type:              constraintForeignKey,
			Columns:           fk.Columns,
			ReferencedTable:   fk.RefTable,
			ReferencedColumns: fk.RefColumns,
			OnDelete:          string(fk.OnDelete),
			OnUpdate:          string(fk.OnUpdate),
		})
	}
	return tt
}
