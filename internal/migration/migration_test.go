package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sqlkit/internal/core"
)

func TestMigrationAccessors(t *testing.T) {
	m := &Migration{}
	m.AddStatementWithRollback("CREATE TABLE a (id INT)", "DROP TABLE a")
	m.AddStatement("  ")
	m.AddStatementWithRollback("CREATE TABLE b (id INT)", "DROP TABLE b")
	m.AddNote("note")
	m.AddBreaking("breaking")
	m.AddUnresolved("a", "cannot alter a")

	assert.Len(t, m.Plan(), 5)
	assert.False(t, m.IsEmpty())
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, m.SQLStatements())
	assert.Equal(t, []string{"DROP TABLE b", "DROP TABLE a"}, m.RollbackStatements())
	assert.Equal(t, []string{"note"}, m.InfoNotes())
	assert.Equal(t, []string{"breaking"}, m.BreakingNotes())
	assert.Equal(t, []string{"cannot alter a"}, m.UnresolvedNotes())
	assert.Equal(t, 1, m.Count(core.OperationUnresolved))
	assert.Equal(t, "a", m.Plan()[4].Table)
}

func TestMigrationIsEmpty(t *testing.T) {
	m := &Migration{}
	assert.True(t, m.IsEmpty())
	m.AddNote("only a note")
	assert.True(t, m.IsEmpty())
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name       string
		operations []core.Operation
		want       []core.Operation
	}{
		{
			name:       "empty",
			operations: nil,
			want:       nil,
		},
		{
			name: "repeated notes and unresolved",
			operations: []core.Operation{
				{Kind: core.OperationNote, SQL: "n"},
				{Kind: core.OperationNote, SQL: " n "},
				{Kind: core.OperationBreaking, SQL: "n"},
				{Kind: core.OperationUnresolved, UnresolvedReason: "r"},
				{Kind: core.OperationUnresolved, UnresolvedReason: "r"},
			},
			want: []core.Operation{
				{Kind: core.OperationNote, SQL: "n"},
				{Kind: core.OperationBreaking, SQL: "n"},
				{Kind: core.OperationUnresolved, UnresolvedReason: "r"},
			},
		},
		{
			name: "repeated rollback is kept once",
			operations: []core.Operation{
				{Kind: core.OperationSQL, SQL: "A", RollbackSQL: "X"},
				{Kind: core.OperationSQL, SQL: "B", RollbackSQL: "X"},
				{Kind: core.OperationSQL, SQL: "", RollbackSQL: "X"},
			},
			want: []core.Operation{
				{Kind: core.OperationSQL, SQL: "A", RollbackSQL: "X"},
				{Kind: core.OperationSQL, SQL: "B"},
			},
		},
		{
			name: "empty entries removed",
			operations: []core.Operation{
				{Kind: core.OperationNote, SQL: "  "},
				{Kind: core.OperationSQL},
			},
			want: []core.Operation{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Migration{Operations: tt.operations}
			m.Dedupe()
			assert.Equal(t, tt.want, m.Operations)
		})
	}
}
