// Package output renders schema diffs and migrations for people and tools.
// The default format writes a SQL script; json and yaml are meant for
// tooling and summary gives the counts only.
package output

import (
	"fmt"
	"strings"

	"sqlkit/internal/diff"
	"sqlkit/internal/migration"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatSQL     Format = "sql"
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatSummary Format = "summary"
)

// Formatter is an interface for formatting schema diffs and migrations.
type Formatter interface {
	FormatDiff(*diff.SchemaDiff) (string, error)
	FormatMigration(*migration.Migration) (string, error)
}

// Option configures a Formatter.
type Option func(*settings)

type settings struct {
	color bool
}

// WithColor highlights added, removed and changed items in text output.
func WithColor(enabled bool) Option {
	return func(s *settings) { s.color = enabled }
}

// NewFormatter creates a new Formatter instance based on the given name.
// If no format is specified, defaults to SQL format.
func NewFormatter(name string, opts ...Option) (Formatter, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	switch format {
	case "", FormatSQL:
		return sqlFormatter{palette: newPalette(s.color)}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	case FormatYAML, "yml":
		return yamlFormatter{}, nil
	case FormatSummary:
		return summaryFormatter{palette: newPalette(s.color)}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'sql', 'json', 'yaml', or 'summary'", name)
	}
}

// normalizeStatements splits rollback batches and terminates every
// statement with a semicolon.
func normalizeStatements(stmts []string) []string {
	var out []string
	for _, stmt := range stmts {
		for _, part := range strings.Split(stmt, ";\n") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !strings.HasSuffix(part, ";") {
				part += ";"
			}
			out = append(out, part)
		}
	}
	return out
}
