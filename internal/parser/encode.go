package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"sqlkit/internal/parser/toml"
)

// Formats lists the schema formats Write produces.
var Formats = []string{"toml", "yaml", "json"}

// Write encodes doc in the named schema format. The output reads back with
// ParseFile when saved under the matching extension.
func Write(w io.Writer, format string, doc *Document) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "toml":
		return toml.Encode(w, doc.Schema, doc.Dialect)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(structured{Dialect: string(doc.Dialect), Schema: *doc.Schema}); err != nil {
			return fmt.Errorf("yaml: encode error: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(structured{Dialect: string(doc.Dialect), Schema: *doc.Schema})
	default:
		return fmt.Errorf("unsupported schema format: %s; use one of %s", format, strings.Join(Formats, ", "))
	}
}
