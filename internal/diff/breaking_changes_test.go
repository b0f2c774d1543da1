package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/core"
)

func TestBreakingChangeAnalyzer(t *testing.T) {
	t.Run("all severities and types", func(t *testing.T) {
		oldS, newS := setupBreakingChangeSchemas()
		d := Diff(oldS, newS, DefaultOptions())
		require.NotNil(t, d)

		an := NewBreakingChangeAnalyzer()
		changes := an.Analyze(d)
		require.NotEmpty(t, changes)

		assert.True(t, hasBC(changes, SeverityCritical, "audit", "audit", "dropped"))
		assert.True(t, hasBC(changes, SeverityCritical, "users", "legacy", "dropped"))
		assert.True(t, hasBC(changes, SeverityBreaking, "users", "email", "shrinks"))
		assert.True(t, hasBC(changes, SeverityBreaking, "users", "nick", "NOT NULL without default"))
		assert.True(t, hasBC(changes, SeverityWarning, "users", "city", "NOT NULL"))
		assert.True(t, hasBC(changes, SeverityBreaking, "users", "code", "without default"))
		assert.True(t, hasBC(changes, SeverityBreaking, "users", "idx_users_code", "unique index added"))
		assert.True(t, hasBC(changes, SeverityInfo, "users", "idx_users_nick", "dropped"))
		assert.True(t, hasBC(changes, SeverityBreaking, "users", "fk_users_org", "orphan"))
		assert.True(t, hasBC(changes, SeverityWarning, "users", "id", "auto increment"))
		assert.Equal(t, SeverityCritical, MaxSeverity(changes))
	})

	t.Run("type conversion safety", func(t *testing.T) {
		oldS := &core.Schema{Tables: []*core.Table{{
			Name: "t",
			Columns: []*core.Column{
				{Name: "widen", Type: core.TypeInt},
				{Name: "narrow", Type: core.TypeLong},
				{Name: "incompat", Type: core.TypeInt},
				{Name: "money", Type: core.TypeDecimal, Size: 10, Precision: 2},
			},
		}}}
		newS := &core.Schema{Tables: []*core.Table{{
			Name: "t",
			Columns: []*core.Column{
				{Name: "widen", Type: core.TypeLong},
				{Name: "narrow", Type: core.TypeInt},
				{Name: "incompat", Type: core.TypeString, Size: 10},
				{Name: "money", Type: core.TypeDecimal, Size: 12, Precision: 2},
			},
		}}}

		d := Diff(oldS, newS, DefaultOptions())
		changes := NewBreakingChangeAnalyzer().Analyze(d)

		assert.True(t, hasBC(changes, SeverityInfo, "t", "widen", "type changes"))
		assert.True(t, hasBC(changes, SeverityCritical, "t", "narrow", "type changes"))
		assert.True(t, hasBC(changes, SeverityCritical, "t", "incompat", "type changes"))
		assert.True(t, hasBC(changes, SeverityInfo, "t", "money", "size increases"))
	})

	t.Run("nil diff", func(t *testing.T) {
		assert.Nil(t, NewBreakingChangeAnalyzer().Analyze(nil))
	})
}

func TestSeverityRisk(t *testing.T) {
	tests := map[ChangeSeverity]core.OperationRisk{
		SeverityInfo:     core.RiskInfo,
		SeverityWarning:  core.RiskWarning,
		SeverityBreaking: core.RiskBreaking,
		SeverityCritical: core.RiskCritical,
	}
	for sev, risk := range tests {
		assert.Equal(t, risk, sev.Risk(), sev.String())
	}
	assert.Equal(t, "UNKNOWN", ChangeSeverity(42).String())

	text, err := SeverityBreaking.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "BREAKING", string(text))
}

func setupBreakingChangeSchemas() (*core.Schema, *core.Schema) {
	oldUsers := core.NewTable("users").
		AddColumn(&core.Column{Name: "id", Type: core.TypeID, AutoIncrement: true, Mandatory: true}).
		AddColumn(&core.Column{Name: "email", Type: core.TypeString, Size: 200, Mandatory: true}).
		AddColumn(&core.Column{Name: "nick", Type: core.TypeString, Size: 30}).
		AddColumn(&core.Column{Name: "city", Type: core.TypeString, Size: 30}).
		AddColumn(&core.Column{Name: "legacy", Type: core.TypeInt}).
		SetPrimaryKey("id").
		AddIndex("idx_users_nick", false, "nick")

	newUsers := core.NewTable("users").
		AddColumn(&core.Column{Name: "id", Type: core.TypeID, Mandatory: true}).
		AddColumn(&core.Column{Name: "email", Type: core.TypeString, Size: 100, Mandatory: true}).
		AddColumn(&core.Column{Name: "nick", Type: core.TypeString, Size: 30, Mandatory: true}).
		AddColumn(&core.Column{Name: "city", Type: core.TypeString, Size: 30, Mandatory: true, DefaultValue: core.StrPtr("unknown")}).
		AddColumn(&core.Column{Name: "code", Type: core.TypeChar, Size: 8, Mandatory: true}).
		AddColumn(&core.Column{Name: "org_id", Type: core.TypeLong}).
		SetPrimaryKey("id").
		AddIndex("idx_users_code", true, "code").
		AddForeignKey(&core.ForeignKey{Name: "fk_users_org", Columns: []string{"org_id"}, RefTable: "orgs", RefColumns: []string{"id"}})

	audit := core.NewTable("audit").AddColumn(&core.Column{Name: "at", Type: core.TypeDateTime})

	return &core.Schema{Tables: []*core.Table{oldUsers, audit}},
		&core.Schema{Tables: []*core.Table{newUsers}}
}

func hasBC(changes []BreakingChange, sev ChangeSeverity, table, object, descSubstr string) bool {
	for _, c := range changes {
		if c.Severity != sev || c.Table != table || c.Object != object {
			continue
		}
		if descSubstr != "" && !strings.Contains(strings.ToLower(c.Description), strings.ToLower(descSubstr)) {
			continue
		}
		return true
	}
	return false
}
