// Package migration turns schema differences into an ordered plan of SQL
// operations, each paired with the statement that undoes it.
package migration

import (
	"strings"

	"sqlkit/internal/core"
)

// Migration contains all operations that need to be performed to apply a
// schema change, in execution order.
type Migration struct {
	// Dialect names the database the SQL was generated for.
	Dialect    string           `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	Operations []core.Operation `json:"operations" yaml:"operations"`
}

// Plan returns the operations in execution order.
func (m *Migration) Plan() []core.Operation {
	return m.Operations
}

// IsEmpty reports whether the migration has no SQL to run.
func (m *Migration) IsEmpty() bool {
	return len(m.SQLStatements()) == 0
}

// SQLStatements returns the forward statements in execution order.
func (m *Migration) SQLStatements() []string {
	return m.filterByKind(core.OperationSQL, func(op core.Operation) string { return op.SQL })
}

// RollbackStatements returns the statements undoing the migration, in the
// order they must run (last operation first).
func (m *Migration) RollbackStatements() []string {
	forward := m.filterByKind(core.OperationSQL, func(op core.Operation) string { return op.RollbackSQL })
	out := make([]string, 0, len(forward))
	for i := len(forward) - 1; i >= 0; i-- {
		out = append(out, forward[i])
	}
	return out
}

// BreakingNotes are changes that can fail on existing data or lose it.
func (m *Migration) BreakingNotes() []string {
	return m.filterByKind(core.OperationBreaking, func(op core.Operation) string { return op.SQL })
}

// UnresolvedNotes are changes no SQL could be generated for.
func (m *Migration) UnresolvedNotes() []string {
	return m.filterByKind(core.OperationUnresolved, func(op core.Operation) string { return op.UnresolvedReason })
}

// InfoNotes are informational messages for the user.
func (m *Migration) InfoNotes() []string {
	return m.filterByKind(core.OperationNote, func(op core.Operation) string { return op.SQL })
}

// Count returns the number of operations of the given kind.
func (m *Migration) Count(kind core.OperationKind) int {
	n := 0
	for _, op := range m.Operations {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

func (m *Migration) AddStatement(stmt string) {
	m.AddStatementWithRollback(stmt, "")
}

func (m *Migration) AddStatementWithRollback(up, down string) {
	m.AddOperation(core.Operation{Kind: core.OperationSQL, SQL: up, RollbackSQL: down})
}

func (m *Migration) AddBreaking(msg string) {
	m.AddOperation(core.Operation{Kind: core.OperationBreaking, SQL: msg, Risk: core.RiskBreaking})
}

func (m *Migration) AddNote(msg string) {
	m.AddOperation(core.Operation{Kind: core.OperationNote, SQL: msg, Risk: core.RiskInfo})
}

func (m *Migration) AddUnresolved(table, reason string) {
	m.AddOperation(core.Operation{Kind: core.OperationUnresolved, Table: table, UnresolvedReason: reason})
}

// AddOperation appends op unless it carries no text at all.
func (m *Migration) AddOperation(op core.Operation) {
	normalizeOperation(&op)
	if op.SQL == "" && op.RollbackSQL == "" && op.UnresolvedReason == "" {
		return
	}
	m.Operations = append(m.Operations, op)
}

// Dedupe drops repeated notes and unresolved entries, and repeated rollback
// statements, keeping the first occurrence.
func (m *Migration) Dedupe() {
	n := len(m.Operations)
	if n == 0 {
		return
	}
	seen := make(map[string]struct{}, n)
	seenRollback := make(map[string]struct{}, n)
	out := make([]core.Operation, 0, n)
	for i := range m.Operations {
		op := m.Operations[i]
		normalizeOperation(&op)

		switch op.Kind {
		case core.OperationSQL:
			if op.RollbackSQL != "" {
				if _, ok := seenRollback[op.RollbackSQL]; ok {
					op.RollbackSQL = ""
				} else {
					seenRollback[op.RollbackSQL] = struct{}{}
				}
			}
			if op.SQL == "" && op.RollbackSQL == "" {
				continue
			}
		default:
			text := op.SQL
			if op.Kind == core.OperationUnresolved {
				text = op.UnresolvedReason
			}
			if text == "" {
				continue
			}
			key := string(op.Kind) + "\x00" + text
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, op)
	}
	m.Operations = out
}

func normalizeOperation(op *core.Operation) {
	op.SQL = strings.TrimSpace(op.SQL)
	op.RollbackSQL = strings.TrimSpace(op.RollbackSQL)
	op.UnresolvedReason = strings.TrimSpace(op.UnresolvedReason)
}

func (m *Migration) filterByKind(kind core.OperationKind, fieldFn func(core.Operation) string) []string {
	out := make([]string, 0, len(m.Operations)/4+1)
	for i := range m.Operations {
		op := &m.Operations[i]
		if op.Kind != kind {
			continue
		}
		val := strings.TrimSpace(fieldFn(*op))
		if val == "" {
			continue
		}
		out = append(out, val)
	}
	return out
}
