package output

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"sqlkit/internal/diff"
	"sqlkit/internal/migration"
)

type yamlFormatter struct{}

func (yamlFormatter) FormatDiff(d *diff.SchemaDiff) (string, error) {
	return marshalYAML(newDiffPayload(FormatYAML, d))
}

func (yamlFormatter) FormatMigration(m *migration.Migration) (string, error) {
	return marshalYAML(newMigrationPayload(FormatYAML, m))
}

func marshalYAML[T Payload](payload T) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
