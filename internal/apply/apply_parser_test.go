package apply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/dialect/mysql"
	"sqlkit/internal/dialect/postgresql"
	"sqlkit/internal/dialect/sqlite"
)

func TestParseStatementsJSON(t *testing.T) {
	applier := NewApplier(mysql.New(), Options{})
	content := `{"format":"json","sql":["CREATE TABLE a (id INT)", "  ", "DROP TABLE b"],"summary":{"sqlStatements":2}}`

	got := applier.ParseStatements(content)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "DROP TABLE b"}, got)
	assert.Equal(t, got, applier.statements)
}

func TestParseStatementsJSONWithoutStatementsFallsBack(t *testing.T) {
	applier := NewApplier(postgresql.New(), Options{})
	got := applier.ParseStatements(`{"format":"yaml"}`)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], `"format":"yaml"`)
}

func TestParseStatementsMySQL(t *testing.T) {
	applier := NewApplier(mysql.New(), Options{})
	content := `-- generated
CREATE TABLE users (id INT PRIMARY KEY);
ALTER TABLE users ADD COLUMN email VARCHAR(255);
`
	got := applier.ParseStatements(content)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "CREATE TABLE `users`"), got[0])
	assert.True(t, strings.HasPrefix(got[1], "ALTER TABLE `users` ADD COLUMN"), got[1])
}

func TestParseStatementsMySQLUnparseableFallsBack(t *testing.T) {
	applier := NewApplier(mysql.New(), Options{})
	got := applier.ParseStatements("THIS IS NOT SQL;\nNOR THIS;")
	assert.Equal(t, []string{"THIS IS NOT SQL;", "NOR THIS;"}, got)
}

func TestParseStatementsLexer(t *testing.T) {
	applier := NewApplier(postgresql.New(), Options{})
	content := `CREATE TABLE "a" ("id" INTEGER, "note" VARCHAR(20) DEFAULT 'x;y');
COMMENT ON TABLE "a" IS 'semi; colon';
`
	got := applier.ParseStatements(content)
	assert.Equal(t, []string{
		`CREATE TABLE "a" ("id" INTEGER, "note" VARCHAR(20) DEFAULT 'x;y')`,
		`COMMENT ON TABLE "a" IS 'semi; colon'`,
	}, got)
}

func TestParseStatementsSQLiteWithoutTrailingSemicolon(t *testing.T) {
	applier := NewApplier(sqlite.New(), Options{})
	got := applier.ParseStatements("CREATE TABLE a (id INTEGER);\nDROP TABLE b")
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)", "DROP TABLE b"}, got)
}

func TestSplitStatementsBySemicolon(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "empty", content: "", want: nil},
		{name: "comments only", content: "-- a\n-- b\n", want: nil},
		{name: "single", content: "SELECT 1;", want: []string{"SELECT 1;"}},
		{
			name:    "multi line statement",
			content: "CREATE TABLE t (\n  id INT\n);\nSELECT 1;",
			want:    []string{"CREATE TABLE t (\n  id INT\n);", "SELECT 1;"},
		},
		{name: "trailing statement without semicolon", content: "SELECT 1;\nSELECT 2", want: []string{"SELECT 1;", "SELECT 2"}},
		{name: "blank lines skipped", content: "\n\nSELECT 1;\n\n", want: []string{"SELECT 1;"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitStatementsBySemicolon(tt.content))
		})
	}
}

func TestTruncateSQL(t *testing.T) {
	tests := []struct {
		name string
		stmt string
		max  int
		want string
	}{
		{name: "short", stmt: "SELECT 1", want: "SELECT 1"},
		{name: "whitespace collapsed", stmt: "SELECT\n   1", want: "SELECT 1"},
		{name: "default limit", stmt: strings.Repeat("a", 70), want: strings.Repeat("a", 57) + "..."},
		{name: "exact limit", stmt: strings.Repeat("a", 10), max: 10, want: strings.Repeat("a", 10)},
		{name: "custom limit", stmt: "SELECT * FROM users", max: 10, want: "SELECT ..."},
		{name: "tiny limit", stmt: "SELECT", max: 2, want: "SE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateSQL(tt.stmt, tt.max))
		})
	}
}
