package output

import (
	"encoding/json"

	"sqlkit/internal/core"
	"sqlkit/internal/diff"
	"sqlkit/internal/migration"
)

type jsonFormatter struct{}

type diffSummary struct {
	AddedTables    int `json:"addedTables" yaml:"addedTables"`
	RemovedTables  int `json:"removedTables" yaml:"removedTables"`
	ModifiedTables int `json:"modifiedTables" yaml:"modifiedTables"`
}

type diffPayload struct {
	Format         string            `json:"format" yaml:"format"`
	Summary        diffSummary       `json:"summary" yaml:"summary"`
	Warnings       []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	AddedTables    []*core.Table     `json:"addedTables,omitempty" yaml:"addedTables,omitempty"`
	RemovedTables  []*core.Table     `json:"removedTables,omitempty" yaml:"removedTables,omitempty"`
	ModifiedTables []*diff.TableDiff `json:"modifiedTables,omitempty" yaml:"modifiedTables,omitempty"`
}

type migrationSummary struct {
	BreakingChanges    int `json:"breakingChanges" yaml:"breakingChanges"`
	Unresolved         int `json:"unresolved" yaml:"unresolved"`
	Notes              int `json:"notes" yaml:"notes"`
	SQLStatements      int `json:"sqlStatements" yaml:"sqlStatements"`
	RollbackStatements int `json:"rollbackStatements" yaml:"rollbackStatements"`
}

// migrationPayload is also what the applier reads back from a json file.
type migrationPayload struct {
	Format          string           `json:"format" yaml:"format"`
	Dialect         string           `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Summary         migrationSummary `json:"summary" yaml:"summary"`
	BreakingChanges []string         `json:"breakingChanges,omitempty" yaml:"breakingChanges,omitempty"`
	Unresolved      []string         `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Notes           []string         `json:"notes,omitempty" yaml:"notes,omitempty"`
	SQL             []string         `json:"sql,omitempty" yaml:"sql,omitempty"`
	Rollback        []string         `json:"rollback,omitempty" yaml:"rollback,omitempty"`
}

type Payload interface {
	diffPayload | migrationPayload
}

func newDiffPayload(format Format, d *diff.SchemaDiff) diffPayload {
	payload := diffPayload{Format: string(format)}
	if d != nil {
		payload.Warnings = d.Warnings
		payload.AddedTables = d.AddedTables
		payload.RemovedTables = d.RemovedTables
		payload.ModifiedTables = d.ModifiedTables
		payload.Summary = diffSummary{
			AddedTables:    len(d.AddedTables),
			RemovedTables:  len(d.RemovedTables),
			ModifiedTables: len(d.ModifiedTables),
		}
	}
	return payload
}

func newMigrationPayload(format Format, m *migration.Migration) migrationPayload {
	payload := migrationPayload{Format: string(format)}
	if m != nil {
		breaking := m.BreakingNotes()
		unresolved := m.UnresolvedNotes()
		notes := m.InfoNotes()
		sql := normalizeStatements(m.SQLStatements())
		rollback := normalizeStatements(m.RollbackStatements())

		payload.Dialect = m.Dialect
		payload.BreakingChanges = breaking
		payload.Unresolved = unresolved
		payload.Notes = notes
		payload.SQL = sql
		payload.Rollback = rollback
		payload.Summary = migrationSummary{
			BreakingChanges:    len(breaking),
			Unresolved:         len(unresolved),
			Notes:              len(notes),
			SQLStatements:      len(sql),
			RollbackStatements: len(rollback),
		}
	}
	return payload
}

func (jsonFormatter) FormatDiff(d *diff.SchemaDiff) (string, error) {
	return marshalJSON(newDiffPayload(FormatJSON, d))
}

func (jsonFormatter) FormatMigration(m *migration.Migration) (string, error) {
	return marshalJSON(newMigrationPayload(FormatJSON, m))
}

func marshalJSON[T Payload](payload T) (string, error) {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
