package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/metrics"
)

func TestOptionsWants(t *testing.T) {
	assert.True(t, Options{}.Wants("anything"))
	opts := Options{Tables: []string{" Users ", "orders"}}
	assert.True(t, opts.Wants("users"))
	assert.True(t, opts.Wants("ORDERS"))
	assert.False(t, opts.Wants("audit"))
}

func TestExtractTables(t *testing.T) {
	var running, peak atomic.Int32
	names := []string{"b", "C", "a", "skip"}
	tables, err := ExtractTables(context.Background(), names, Options{Tables: []string{"a", "b", "c"}, Concurrency: 2},
		func(_ context.Context, name string) (*core.Table, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			return core.NewTable(name), nil
		})
	require.NoError(t, err)

	var got []string
	for _, tbl := range tables {
		got = append(got, tbl.Name)
	}
	assert.Equal(t, []string{"a", "b", "C"}, got)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExtractTablesError(t *testing.T) {
	_, err := ExtractTables(context.Background(), []string{"a", "b"}, Options{}, func(_ context.Context, name string) (*core.Table, error) {
		if name == "b" {
			return nil, errors.New("boom")
		}
		return core.NewTable(name), nil
	})
	assert.EqualError(t, err, "table b: boom")
}

func TestNormalizeDefault(t *testing.T) {
	tests := []struct {
		raw  string
		want *string
	}{
		{raw: "", want: nil},
		{raw: "NULL", want: nil},
		{raw: "NULL::character varying", want: nil},
		{raw: "0", want: core.StrPtr("0")},
		{raw: "'abc'", want: core.StrPtr("abc")},
		{raw: "'it''s'", want: core.StrPtr("it's")},
		{raw: "'new'::character varying", want: core.StrPtr("new")},
		{raw: "'a::b'", want: core.StrPtr("a::b")},
		{raw: "(-1)", want: core.StrPtr("-1")},
		{raw: "('x')", want: core.StrPtr("x")},
		{raw: "(1) + (2)", want: core.StrPtr("(1) + (2)")},
		{raw: "now()", want: core.StrPtr("now()")},
		{raw: "CURRENT_TIMESTAMP", want: core.StrPtr("CURRENT_TIMESTAMP")},
		{raw: "nextval('seq'::regclass)", want: core.StrPtr("nextval('seq'::regclass)")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDefault(tt.raw))
		})
	}
}

func TestReferentialAction(t *testing.T) {
	tests := []struct {
		rule    string
		want    core.ReferentialAction
		wantErr bool
	}{
		{rule: "NO ACTION", want: core.RefActionNone},
		{rule: "RESTRICT", want: core.RefActionRestrict},
		{rule: "set null", want: core.RefActionSetNull},
		{rule: "CASCADE", want: core.RefActionCascade},
		{rule: "EXPLODE", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			got, err := ReferentialAction(tt.rule)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeIntrospecter struct {
	schema *core.Schema
	err    error
}

func (f *fakeIntrospecter) Introspect(context.Context, *sql.DB, Options) (*core.Schema, error) {
	return f.schema, f.err
}

func TestExtractor(t *testing.T) {
	const name dialect.Name = "fake"
	fake := &fakeIntrospecter{schema: &core.Schema{Name: "main", Tables: []*core.Table{core.NewTable("a")}}}
	Register(name, func() Introspecter { return fake })

	mc := metrics.NewCollector("test")
	e, err := NewExtractor(name, WithMetrics(mc))
	require.NoError(t, err)

	s, err := e.Extract(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Len(t, s.Tables, 1)

	fake.err = fmt.Errorf("connection reset")
	_, err = e.Extract(context.Background(), nil, Options{})
	assert.ErrorContains(t, err, "extract fake schema: connection reset")

	n, err := testutil.GatherAndCount(mc.Registry(), "test_extract_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per status")
}

func TestNewUnknownDialect(t *testing.T) {
	_, err := New("nope")
	assert.Error(t, err)
	_, err = NewExtractor("nope")
	assert.Error(t, err)
}
