package toml

import (
	"errors"
	"fmt"
	"strings"

	"sqlkit/internal/core"
)

// tomlTable maps [[tables]].
type tomlTable struct {
	Name        string           `toml:"name"`
	Comment     string           `toml:"comment,omitempty"`
	Engine      string           `toml:"engine,omitempty"`
	PrimaryKey  []string         `toml:"primary_key,omitempty"`
	Columns     []tomlColumn     `toml:"columns"`
	Constraints []tomlConstraint `toml:"constraints,omitempty"`
	Indexes     []tomlIndex      `toml:"indexes,omitempty"`
	Timestamps  *tomlTimestamps  `toml:"timestamps,omitempty"`
}

// tomlTimestamps maps [tables.timestamps].
type tomlTimestamps struct {
	Enabled       bool   `toml:"enabled"`
	CreatedColumn string `toml:"created_column,omitempty"`
	UpdatedColumn string `toml:"updated_column,omitempty"`
}

// tomlConstraint maps [[tables.constraints]].
type tomlConstraint struct {
	Name              string   `toml:"name,omitempty"`
	Type              string   `toml:"type"`
	Columns           []string `toml:"columns"`
	ReferencedTable   string   `toml:"referenced_table,omitempty"`
	ReferencedColumns []string `toml:"referenced_columns,omitempty"`
	OnDelete          string   `toml:"on_delete,omitempty"`
	OnUpdate          string   `toml:"on_update,omitempty"`
}

// tomlIndex maps [[tables.indexes]]. Columns lists plain names; a name may
// carry a trailing " DESC".
type tomlIndex struct {
	Name    string   `toml:"name,omitempty"`
	Columns []string `toml:"columns"`
	Unique  bool     `toml:"unique,omitempty"`
}

const (
	constraintPrimaryKey = "PRIMARY KEY"
	constraintUnique     = "UNIQUE"
	constraintForeignKey = "FOREIGN KEY"
)

func (c *converter) convertTable(tt *tomlTable) (*core.Table, error) {
	if err := c.checkName("table", tt.Name, c.maxTableName()); err != nil {
		return nil, err
	}

	table := core.NewTable(tt.Name)
	table.Comment = tt.Comment
	table.Engine = tt.Engine

	var columnPK []string
	for i := range tt.Columns {
		tc := &tt.Columns[i]
		col, err := c.convertColumn(tc)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", tc.Name, err)
		}
		table.AddColumn(col)
		if tc.PrimaryKey {
			columnPK = append(columnPK, col.Name)
		}
		if tc.Unique {
			table.AddIndex("", true, col.Name)
		}
		if tc.References != "" {
			fk, err := inlineForeignKey(tc)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", tc.Name, err)
			}
			table.AddForeignKey(fk)
		}
	}
	if tt.Timestamps != nil && tt.Timestamps.Enabled {
		injectTimestampColumns(table, tt.Timestamps)
	}

	if err := setPrimaryKey(table, columnPK, tt.PrimaryKey); err != nil {
		return nil, err
	}
	for i := range tt.Constraints {
		if err := applyConstraint(table, &tt.Constraints[i]); err != nil {
			return nil, err
		}
	}
	for i := range tt.Indexes {
		idx, err := convertIndex(&tt.Indexes[i])
		if err != nil {
			return nil, err
		}
		table.Indexes = append(table.Indexes, idx)
	}
	return table, nil
}

// setPrimaryKey accepts a key declared on columns or as a table level list,
// not both.
func setPrimaryKey(table *core.Table, columnPK, tablePK []string) error {
	if len(columnPK) > 0 && len(tablePK) > 0 {
		return errors.New("primary key declared on both column(s) and primary_key; use one of them")
	}
	switch {
	case len(columnPK) > 0:
		table.SetPrimaryKey(columnPK...)
	case len(tablePK) > 0:
		table.SetPrimaryKey(tablePK...)
	}
	return nil
}

func applyConstraint(table *core.Table, tc *tomlConstraint) error {
	switch strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(tc.Type, "_", " ")), " ")) {
	case constraintPrimaryKey:
		if table.PrimaryKey != nil {
			return errors.New("multiple primary keys declared; a table can have at most one primary key")
		}
		table.SetPrimaryKey(tc.Columns...)
		table.PrimaryKey.Name = tc.Name
	case constraintUnique:
		table.AddIndex(tc.Name, true, tc.Columns...)
	case constraintForeignKey:
		fk := &core.ForeignKey{
			Name:       tc.Name,
			Columns:    tc.Columns,
			RefTable:   tc.ReferencedTable,
			RefColumns: tc.ReferencedColumns,
		}
		var err error
		if fk.OnDelete, fk.OnUpdate, err = referentialActions(tc.OnDelete, tc.OnUpdate); err != nil {
			return fmt.Errorf("constraint %q: %w", tc.Name, err)
		}
		table.AddForeignKey(fk)
	default:
		return fmt.Errorf("constraint %q: unknown type %q", tc.Name, tc.Type)
	}
	return nil
}

func convertIndex(ti *tomlIndex) (*core.Index, error) {
	if len(ti.Columns) == 0 {
		name := ti.Name
		if name == "" {
			name = "(unnamed)"
		}
		return nil, fmt.Errorf("index %s has no columns", name)
	}
	idx := &core.Index{Name: ti.Name, Unique: ti.Unique}
	for _, raw := range ti.Columns {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return nil, fmt.Errorf("index %s has an empty column", ti.Name)
		}
		ic := core.IndexColumn{Name: fields[0]}
		if len(fields) == 2 && strings.EqualFold(fields[1], "DESC") {
			ic.Desc = true
		} else if len(fields) > 1 && !(len(fields) == 2 && strings.EqualFold(fields[1], "ASC")) {
			return nil, fmt.Errorf("index %s: invalid column %q", ti.Name, raw)
		}
		idx.Columns = append(idx.Columns, ic)
	}
	return idx, nil
}

func referentialActions(onDelete, onUpdate string) (core.ReferentialAction, core.ReferentialAction, error) {
	del, err := core.ParseReferentialAction(onDelete)
	if err != nil {
		return "", "", err
	}
	up, err := core.ParseReferentialAction(onUpdate)
	if err != nil {
		return "", "", err
	}
	return del, up, nil
}

// injectTimestampColumns appends created/updated columns unless the table
// already declares them.
func injectTimestampColumns(table *core.Table, ts *tomlTimestamps) {
	created, updated := "created_at", "updated_at"
	if ts.CreatedColumn != "" {
		created = ts.CreatedColumn
	}
	if ts.UpdatedColumn != "" {
		updated = ts.UpdatedColumn
	}
	for _, name := range []string{created, updated} {
		if table.FindColumn(name) != nil {
			continue
		}
		table.AddColumn(&core.Column{
			Name:         name,
			Type:         core.TypeDateTime,
			Mandatory:    true,
			DefaultValue: core.StrPtr("CURRENT_TIMESTAMP"),
		})
	}
}
