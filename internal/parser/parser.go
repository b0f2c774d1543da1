// Package parser reads schema files in the formats we support and turns
// them into the schema model. The format is chosen by file extension.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/parser/mysql"
	"sqlkit/internal/parser/toml"
)

// Document is a parsed schema file. Dialect is set when the file names one;
// MySQL dumps always report MySQL.
type Document struct {
	Schema  *core.Schema
	Dialect dialect.Name
}

// structured is the YAML and JSON layout: the model itself plus an optional
// dialect.
type structured struct {
	Dialect     string `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	core.Schema `yaml:",inline"`
}

func ParseFile(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		doc, err := toml.NewParser().ParseFile(path)
		if err != nil {
			return nil, err
		}
		return &Document{Schema: doc.Schema, Dialect: doc.Dialect}, nil
	case ".sql":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ParseSQL(string(data))
	case ".yaml", ".yml":
		return parseStructured(path, decodeYAML)
	case ".json":
		return parseStructured(path, decodeJSON)
	default:
		return nil, &UnsupportedFormatError{Path: path}
	}
}

// ParseSQL reads the CREATE TABLE statements of a MySQL dump.
func ParseSQL(sql string) (*Document, error) {
	schema, err := mysql.NewParser().Parse(sql)
	if err != nil {
		return nil, err
	}
	return &Document{Schema: schema, Dialect: dialect.MySQL}, nil
}

func decodeYAML(r io.Reader, v *structured) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml: %w", err)
	}
	return nil
}

func decodeJSON(r io.Reader, v *structured) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

func parseStructured(path string, decode func(io.Reader, *structured) error) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s structured
	if err := decode(bytes.NewReader(data), &s); err != nil {
		return nil, err
	}

	doc := &Document{Schema: &s.Schema}
	if strings.TrimSpace(s.Dialect) != "" {
		if doc.Dialect, err = dialect.ParseName(s.Dialect); err != nil {
			return nil, err
		}
	}
	for _, t := range doc.Schema.Tables {
		if t == nil {
			continue
		}
		for _, fk := range t.ForeignKeys {
			if fk == nil {
				continue
			}
			if fk.OnDelete, err = core.ParseReferentialAction(string(fk.OnDelete)); err != nil {
				return nil, fmt.Errorf("table %s: %w", t.Name, err)
			}
			if fk.OnUpdate, err = core.ParseReferentialAction(string(fk.OnUpdate)); err != nil {
				return nil, fmt.Errorf("table %s: %w", t.Name, err)
			}
		}
	}
	if err := doc.Schema.Validate(); err != nil {
		return nil, err
	}
	doc.Schema.Normalize()
	return doc, nil
}

type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return "unsupported file format: " + e.Path
}
