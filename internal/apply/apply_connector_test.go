package apply

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"sqlkit/internal/dialect/mysql"
)

type testMySQLContainer struct {
	container *tcmysql.MySQLContainer
	dsn       string
	db        *sql.DB
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close db: %v", err)
		}
	})

	return &testMySQLContainer{container: container, dsn: dsn, db: db}
}

func TestApplierMySQLIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupMySQL(t)
	ctx := context.Background()

	t.Run("connect and close", func(t *testing.T) {
		applier := NewApplier(mysql.New(), Options{DSN: tc.dsn})
		require.NoError(t, applier.Connect(ctx))
		require.NoError(t, applier.Close())
		_ = applier.Close()
	})

	t.Run("unreachable server fails", func(t *testing.T) {
		applier := NewApplier(mysql.New(), Options{DSN: "root:x@tcp(127.0.0.1:1)/nope", ConnectRetries: -1})
		assert.Error(t, applier.Connect(ctx))
		assert.NoError(t, applier.Close())
	})

	t.Run("applies sequentially with implicit commits", func(t *testing.T) {
		var buf bytes.Buffer
		applier := NewApplier(mysql.New(), Options{
			DSN:                   tc.dsn,
			Transaction:           true,
			AllowNonTransactional: true,
			SkipConfirmation:      true,
			Out:                   &buf,
		})
		require.NoError(t, applier.Connect(ctx))
		defer applier.Close()

		stmts := applier.ParseStatements(`
CREATE TABLE it_users (id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, email VARCHAR(100) NOT NULL);
CREATE INDEX idx_it_users_email ON it_users (email);
INSERT INTO it_users (email) VALUES ('a@example.com');
`)
		require.Len(t, stmts, 3)
		preflight := applier.PreflightChecks(stmts, false)
		assert.False(t, preflight.IsTransactional)
		require.NoError(t, applier.Apply(ctx, stmts, preflight))
		assert.Contains(t, buf.String(), "Database is accessible")

		var n int
		require.NoError(t, tc.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM it_users").Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("failure reports mysql hint", func(t *testing.T) {
		applier := NewApplier(mysql.New(), Options{DSN: tc.dsn, SkipConfirmation: true})
		require.NoError(t, applier.Connect(ctx))
		defer applier.Close()

		stmts := []string{"CREATE TABLE it_users (id INT)"}
		err := applier.Apply(ctx, stmts, applier.PreflightChecks(stmts, false))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table already exists")
	})
}
