// Package toml reads and writes the TOML schema format. A schema file holds
// a [database] table, optional [validation] rules and one [[tables]] entry
// per table; columns, indexes and constraints are nested arrays of tables.
package toml

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
)

// schemaFile is the top-level TOML document.
type schemaFile struct {
	Database   tomlDatabase    `toml:"database"`
	Validation *tomlValidation `toml:"validation,omitempty"`
	Tables     []tomlTable     `toml:"tables"`
}

// tomlDatabase maps [database].
type tomlDatabase struct {
	Name    string `toml:"name,omitempty"`
	Dialect string `toml:"dialect,omitempty"`
}

// tomlValidation maps [validation].
type tomlValidation struct {
	MaxTableNameLength  int    `toml:"max_table_name_length,omitempty"`
	MaxColumnNameLength int    `toml:"max_column_name_length,omitempty"`
	AllowedNamePattern  string `toml:"allowed_name_pattern,omitempty"`
}

// Document is a decoded schema file: the schema plus the dialect the file
// declares, if any.
type Document struct {
	Schema  *core.Schema
	Dialect dialect.Name
}

// Parser reads TOML schema files.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseFile opens the file at path and parses it.
func (p *Parser) ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("toml: open file %q: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse decodes a schema from r and validates it.
func (p *Parser) Parse(r io.Reader) (*Document, error) {
	var sf schemaFile
	md, err := toml.NewDecoder(r).Decode(&sf)
	if err != nil {
		return nil, fmt.Errorf("toml: decode error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("toml: unknown keys: %s", strings.Join(keys, ", "))
	}

	return newConverter(&sf).convert()
}

type converter struct {
	sf     *schemaFile
	rules  *tomlValidation
	nameRe *regexp.Regexp
}

func newConverter(sf *schemaFile) *converter {
	return &converter{sf: sf, rules: sf.Validation}
}

func (c *converter) convert() (*Document, error) {
	doc := &Document{}
	if raw := strings.TrimSpace(c.sf.Database.Dialect); raw != "" {
		name, err := dialect.ParseName(raw)
		if err != nil {
			return nil, fmt.Errorf("toml: %w", err)
		}
		doc.Dialect = name
	}

	if c.rules != nil && c.rules.AllowedNamePattern != "" {
		re, err := regexp.Compile(c.rules.AllowedNamePattern)
		if err != nil {
			return nil, fmt.Errorf("toml: invalid allowed_name_pattern %q: %w", c.rules.AllowedNamePattern, err)
		}
		c.nameRe = re
	}

	schema := &core.Schema{
		Name:   c.sf.Database.Name,
		Tables: make([]*core.Table, 0, len(c.sf.Tables)),
	}
	for i := range c.sf.Tables {
		t, err := c.convertTable(&c.sf.Tables[i])
		if err != nil {
			return nil, fmt.Errorf("toml: table %q: %w", c.sf.Tables[i].Name, err)
		}
		schema.Tables = append(schema.Tables, t)
	}

	schema.Normalize()
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("toml: %w", err)
	}
	doc.Schema = schema
	return doc, nil
}

// checkName applies the [validation] rules to a table or column name.
func (c *converter) checkName(kind, name string, maxLen int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is empty", kind)
	}
	if maxLen > 0 && len(name) > maxLen {
		return fmt.Errorf("%s %q exceeds maximum length %d", kind, name, maxLen)
	}
	if c.nameRe != nil && !c.nameRe.MatchString(name) {
		return fmt.Errorf("%s %q does not match allowed pattern %q", kind, name, c.nameRe.String())
	}
	return nil
}

func (c *converter) maxTableName() int {
	if c.rules == nil {
		return 0
	}
	return c.rules.MaxTableNameLength
}

func (c *converter) maxColumnName() int {
	if c.rules == nil {
		return 0
	}
	return c.rules.MaxColumnNameLength
}
