package apply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/dialect"
	"sqlkit/internal/dialect/mssql"
	"sqlkit/internal/dialect/mysql"
	"sqlkit/internal/dialect/oracle"
	"sqlkit/internal/dialect/postgresql"
	"sqlkit/internal/dialect/sqlite"
)

type analyzeCase struct {
	name              string
	sql               string
	wantDestructive   bool
	wantBlocking      bool
	wantTxSafe        bool
	wantStatementType string
}

func runAnalyzeCases(t *testing.T, h dialect.Helper, cases []analyzeCase) {
	t.Helper()
	analyzer := NewStatementAnalyzer(h)
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzer.AnalyzeStatement(tt.sql)
			assert.Equal(t, tt.wantDestructive, got.IsDestructive, "destructive")
			assert.Equal(t, tt.wantBlocking, got.IsBlocking, "blocking")
			assert.Equal(t, tt.wantTxSafe, got.IsTransactionSafe, "transaction safe")
			assert.Equal(t, tt.wantStatementType, got.StatementType)
		})
	}
}

func TestAnalyzeStatementMySQL(t *testing.T) {
	runAnalyzeCases(t, mysql.New(), []analyzeCase{
		{name: "drop table", sql: "DROP TABLE users;", wantDestructive: true, wantStatementType: "DROP TABLE"},
		{name: "drop database", sql: "DROP DATABASE mydb;", wantDestructive: true, wantStatementType: "DROP DATABASE"},
		{name: "truncate", sql: "TRUNCATE TABLE users;", wantDestructive: true, wantBlocking: true, wantStatementType: "TRUNCATE TABLE"},
		{name: "delete stays transactional", sql: "DELETE FROM users WHERE id = 1;", wantDestructive: true, wantTxSafe: true, wantStatementType: "DELETE"},
		{name: "create table", sql: "CREATE TABLE users (id INT PRIMARY KEY);", wantStatementType: "CREATE TABLE"},
		{name: "create index", sql: "CREATE INDEX idx_name ON users(name);", wantBlocking: true, wantStatementType: "CREATE INDEX"},
		{name: "create unique index", sql: "CREATE UNIQUE INDEX idx_name ON users(name);", wantBlocking: true, wantStatementType: "CREATE INDEX"},
		{name: "add column", sql: "ALTER TABLE users ADD COLUMN email VARCHAR(255);", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "drop column", sql: "ALTER TABLE users DROP COLUMN email;", wantDestructive: true, wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "modify column", sql: "ALTER TABLE t MODIFY COLUMN x BIGINT", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "change column", sql: "ALTER TABLE t CHANGE COLUMN old_name new_name INT", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "drop foreign key", sql: "ALTER TABLE t DROP FOREIGN KEY fk_name", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "rename via alter", sql: "ALTER TABLE t RENAME TO t2", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "add unique index", sql: "ALTER TABLE t ADD UNIQUE INDEX idx_unique (col)", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "add check", sql: "ALTER TABLE t ADD CONSTRAINT chk CHECK (col > 0)", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "force", sql: "ALTER TABLE t FORCE", wantBlocking: true, wantStatementType: "ALTER TABLE"},
		{name: "rename table", sql: "RENAME TABLE a TO b", wantBlocking: true, wantStatementType: "RENAME TABLE"},
		{name: "create view", sql: "CREATE VIEW v AS SELECT 1", wantStatementType: "CREATE VIEW"},
		{name: "alter database", sql: "ALTER DATABASE testdb CHARACTER SET utf8mb4", wantStatementType: "ALTER DATABASE"},
		{name: "insert", sql: "INSERT INTO t VALUES (1)", wantTxSafe: true, wantStatementType: "INSERT"},
		{name: "update", sql: "UPDATE t SET x = 1", wantTxSafe: true, wantStatementType: "UPDATE"},
		{name: "select", sql: "SELECT * FROM t", wantTxSafe: true, wantStatementType: "SELECT"},
		{name: "procedure", sql: "CREATE PROCEDURE p() BEGIN SELECT 1; END", wantStatementType: "CREATE PROCEDURE"},
		{name: "drop trigger", sql: "DROP TRIGGER IF EXISTS trg", wantStatementType: "DROP TRIGGER"},
		{name: "drop event", sql: "DROP EVENT IF EXISTS ev", wantStatementType: "DROP EVENT"},
	})
}

func TestAnalyzeStatementPostgreSQL(t *testing.T) {
	runAnalyzeCases(t, postgresql.New(), []analyzeCase{
		{name: "create table", sql: `CREATE TABLE "users" ("id" BIGSERIAL)`, wantTxSafe: true, wantStatementType: "CREATE TABLE"},
		{name: "drop table", sql: `DROP TABLE "users"`, wantDestructive: true, wantTxSafe: true, wantStatementType: "DROP TABLE"},
		{name: "alter column type", sql: `ALTER TABLE "users" ALTER COLUMN "email" TYPE VARCHAR(200) USING "email"::VARCHAR(200)`, wantBlocking: true, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
		{name: "drop column", sql: `ALTER TABLE "users" DROP COLUMN "age"`, wantDestructive: true, wantBlocking: true, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
		{name: "add column is cheap", sql: `ALTER TABLE "users" ADD COLUMN "age" INTEGER`, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
		{name: "add foreign key", sql: `ALTER TABLE "o" ADD CONSTRAINT "fk" FOREIGN KEY ("u") REFERENCES "users" ("id")`, wantBlocking: true, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
		{name: "drop constraint", sql: `ALTER TABLE "o" DROP CONSTRAINT "fk"`, wantBlocking: true, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
		{name: "keywords inside literals are ignored", sql: `ALTER TABLE "t" ADD COLUMN "note" VARCHAR(20) DEFAULT 'drop column'`, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
		{name: "comment", sql: `COMMENT ON TABLE "t" IS 'accounts'`, wantTxSafe: true, wantStatementType: "COMMENT"},
		{name: "concurrent index", sql: `CREATE INDEX CONCURRENTLY "i" ON "t" ("a")`, wantBlocking: true, wantStatementType: "CREATE INDEX"},
		{name: "create database", sql: `CREATE DATABASE app`, wantStatementType: "CREATE DATABASE"},
		{name: "truncate without table keyword", sql: `TRUNCATE "users"`, wantDestructive: true, wantBlocking: true, wantTxSafe: true, wantStatementType: "TRUNCATE TABLE"},
	})
}

func TestAnalyzeStatementOtherDialects(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		runAnalyzeCases(t, sqlite.New(), []analyzeCase{
			{name: "rename", sql: `ALTER TABLE "a" RENAME TO "a__bak_00000000"`, wantBlocking: true, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
			{name: "rename column", sql: `ALTER TABLE "a" RENAME COLUMN "x" TO "y"`, wantBlocking: true, wantTxSafe: true, wantStatementType: "ALTER TABLE"},
		})
	})
	t.Run("oracle", func(t *testing.T) {
		runAnalyzeCases(t, oracle.New(), []analyzeCase{
			{name: "ddl commits", sql: `CREATE TABLE "T" ("ID" NUMBER(19))`, wantStatementType: "CREATE TABLE"},
			{name: "dml", sql: `INSERT INTO "T" ("ID") VALUES (1)`, wantTxSafe: true, wantStatementType: "INSERT"},
		})
	})
	t.Run("mssql", func(t *testing.T) {
		runAnalyzeCases(t, mssql.New(), []analyzeCase{
			{name: "sp_rename", sql: `EXEC sp_rename 'a.x', 'y', 'COLUMN'`, wantBlocking: true, wantTxSafe: true, wantStatementType: "RENAME OBJECT"},
			{name: "unknown", sql: `DBCC CHECKDB`, wantTxSafe: true, wantStatementType: "OTHER"},
		})
	})
}

func TestNonTransactionalReasonNamesDialect(t *testing.T) {
	got := NewStatementAnalyzer(oracle.New()).AnalyzeStatement(`DROP TABLE "T"`)
	assert.Equal(t, "DROP TABLE causes an implicit commit in Oracle", got.TxUnsafeReason)

	got = NewStatementAnalyzer(postgresql.New()).AnalyzeStatement(`CREATE INDEX CONCURRENTLY "i" ON "t" ("a")`)
	assert.Contains(t, got.TxUnsafeReason, "cannot run inside a transaction block")
}

func TestAnalyzeStatements(t *testing.T) {
	analyzer := NewStatementAnalyzer(mysql.New())

	t.Run("collects warnings per level", func(t *testing.T) {
		result := analyzer.AnalyzeStatements([]string{
			"DROP TABLE users",
			"CREATE INDEX idx ON t(a)",
			"INSERT INTO t VALUES (1)",
		}, false)
		require.Len(t, result.Warnings, 2)
		assert.Equal(t, WarnDanger, result.Warnings[0].Level)
		assert.Contains(t, result.Warnings[0].Message, "requires --unsafe flag")
		assert.Equal(t, WarnCaution, result.Warnings[1].Level)
		assert.False(t, result.IsTransactional)
		assert.Len(t, result.NonTxReasons, 2)
		assert.Contains(t, result.NonTxReasons[0], "DROP TABLE causes an implicit commit in MySQL: DROP TABLE users")
	})

	t.Run("unsafe drops the flag hint", func(t *testing.T) {
		result := analyzer.AnalyzeStatements([]string{"DROP TABLE users"}, true)
		require.Len(t, result.Warnings, 1)
		assert.NotContains(t, result.Warnings[0].Message, "--unsafe")
	})

	t.Run("dml only is transactional", func(t *testing.T) {
		result := analyzer.AnalyzeStatements([]string{"SELECT 1"}, false)
		assert.True(t, result.IsTransactional)
		assert.Empty(t, result.Warnings)
	})

	t.Run("transactional ddl dialect", func(t *testing.T) {
		result := NewStatementAnalyzer(postgresql.New()).AnalyzeStatements([]string{
			`CREATE TABLE "a" ("id" INTEGER)`,
			`ALTER TABLE "a" ADD COLUMN "b" INTEGER`,
		}, false)
		assert.True(t, result.IsTransactional)
		assert.Empty(t, result.NonTxReasons)
	})
}

func TestAddTransactionSafety(t *testing.T) {
	analyzer := NewStatementAnalyzer(mysql.New())

	result := &PreflightResult{IsTransactional: true}
	analyzer.addTransactionSafety(result, &StatementAnalysis{}, "CREATE TABLE foo (id INT)")
	assert.False(t, result.IsTransactional)
	assert.Equal(t, "DDL statement causes implicit commit: CREATE TABLE foo (id INT)", result.NonTxReasons[0])

	result = &PreflightResult{IsTransactional: true}
	analyzer.addTransactionSafety(result, &StatementAnalysis{TxUnsafeReason: "specific reason"}, "ALTER TABLE t ADD COLUMN x INT")
	assert.Equal(t, "specific reason: ALTER TABLE t ADD COLUMN x INT", result.NonTxReasons[0])
}

func TestStatementKind(t *testing.T) {
	tests := []struct{ sql, want string }{
		{"", "OTHER"},
		{"create or replace view v as select 1", "CREATE VIEW"},
		{"CREATE UNIQUE INDEX i ON t (a)", "CREATE INDEX"},
		{"CREATE TEMPORARY TABLE t (a INT)", "CREATE TABLE"},
		{"drop materialized view mv", "DROP VIEW"},
		{"WITH x AS (SELECT 1) SELECT * FROM x", "SELECT"},
		{"VACUUM", "OTHER"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statementKind(tt.sql), tt.sql)
	}
}
