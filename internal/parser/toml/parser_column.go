package toml

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sqlkit/internal/core"
)

// tomlColumn maps [[tables.columns]].
type tomlColumn struct {
	Name          string `toml:"name"`
	Type          string `toml:"type"`
	Size          int    `toml:"size,omitempty"`
	Precision     int    `toml:"precision,omitempty"`
	Nullable      *bool  `toml:"nullable,omitempty"`
	Mandatory     bool   `toml:"mandatory,omitempty"`
	Binary        bool   `toml:"binary,omitempty"`
	AutoIncrement bool   `toml:"auto_increment,omitempty"`
	PrimaryKey    bool   `toml:"primary_key,omitempty"`
	Comment       string `toml:"comment,omitempty"`

	// DefaultValue accepts string, bool, or number from TOML. The converter
	// normalizes everything to a string.
	DefaultValue any `toml:"default,omitempty"`

	Unique bool `toml:"unique,omitempty"`
	// References is "table.column"; on_delete and on_update apply to it.
	References string `toml:"references,omitempty"`
	OnDelete   string `toml:"on_delete,omitempty"`
	OnUpdate   string `toml:"on_update,omitempty"`
}

func (c *converter) convertColumn(tc *tomlColumn) (*core.Column, error) {
	if err := c.checkName("column", tc.Name, c.maxColumnName()); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tc.Type) == "" {
		return nil, errors.New("type is empty")
	}
	typ, err := core.ParseDBType(tc.Type)
	if err != nil {
		return nil, err
	}
	if tc.Nullable != nil && *tc.Nullable && tc.Mandatory {
		return nil, errors.New("column cannot be both nullable and mandatory")
	}

	col := &core.Column{
		Name:          tc.Name,
		Type:          typ,
		Size:          tc.Size,
		Precision:     tc.Precision,
		Mandatory:     tc.Mandatory || tc.PrimaryKey || (tc.Nullable != nil && !*tc.Nullable),
		Binary:        tc.Binary,
		AutoIncrement: tc.AutoIncrement,
		Comment:       tc.Comment,
	}
	if tc.DefaultValue != nil {
		s, err := normalizeDefault(tc.DefaultValue)
		if err != nil {
			return nil, err
		}
		col.DefaultValue = &s
	}
	if tc.References == "" && (tc.OnDelete != "" || tc.OnUpdate != "") {
		return nil, errors.New("on_delete and on_update require references")
	}
	return col, nil
}

func inlineForeignKey(tc *tomlColumn) (*core.ForeignKey, error) {
	table, column, ok := strings.Cut(tc.References, ".")
	if !ok || table == "" || column == "" || strings.Contains(column, ".") {
		return nil, fmt.Errorf("invalid references %q: expected format \"table.column\"", tc.References)
	}
	fk := &core.ForeignKey{
		Columns:    []string{tc.Name},
		RefTable:   table,
		RefColumns: []string{column},
	}
	var err error
	if fk.OnDelete, fk.OnUpdate, err = referentialActions(tc.OnDelete, tc.OnUpdate); err != nil {
		return nil, err
	}
	return fk, nil
}

func normalizeDefault(v any) (string, error) {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val), nil
	case string:
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("unsupported default value %v of type %T", v, v)
}
