package compile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/core"
	"sqlkit/internal/dialect"
	"sqlkit/internal/dialect/mssql"
	"sqlkit/internal/dialect/mysql"
	"sqlkit/internal/dialect/oracle"
	"sqlkit/internal/dialect/postgresql"
	"sqlkit/internal/dialect/sqlite"
	q "sqlkit/internal/query"
)

func helpers() map[dialect.Name]dialect.Helper {
	return map[dialect.Name]dialect.Helper{
		dialect.MySQL:      mysql.New(),
		dialect.PostgreSQL: postgresql.New(),
		dialect.SQLite:     sqlite.New(),
		dialect.MSSQL:      mssql.New(),
		dialect.Oracle:     oracle.New(),
	}
}

func mustSQL(t *testing.T, h dialect.Helper, stmt q.Statement) string {
	t.Helper()
	compiled, err := New(h).Compile(stmt)
	require.NoError(t, err)
	text, err := compiled.SQL()
	require.NoError(t, err)
	return text
}

func TestSelectPerDialect(t *testing.T) {
	build := func() q.Statement {
		return q.Select(q.Col("id"), q.Col("name")).
			From("users").
			Where(q.Eq(q.Col("id"), q.P("id", core.TypeLong)))
	}
	want := map[dialect.Name]string{
		dialect.MySQL:      "SELECT `id`, `name` FROM `users` WHERE `id` = ?",
		dialect.PostgreSQL: `SELECT "id", "name" FROM "users" WHERE "id" = $1`,
		dialect.SQLite:     `SELECT "id", "name" FROM "users" WHERE "id" = ?`,
		dialect.MSSQL:      "SELECT [id], [name] FROM [users] WHERE [id] = @p1",
		dialect.Oracle:     `SELECT "id", "name" FROM "users" WHERE "id" = :1`,
	}
	for name, h := range helpers() {
		t.Run(string(name), func(t *testing.T) {
			assert.Equal(t, want[name], mustSQL(t, h, build()))
		})
	}
}

func TestPrecedence(t *testing.T) {
	h := mysql.New()
	a := q.Eq(q.Col("a"), q.Lit(1))
	b := q.Eq(q.Col("b"), q.Lit(2))
	c := q.Eq(q.Col("c"), q.Lit(3))

	tests := []struct {
		name string
		cond q.Expr
		want string
	}{
		{"and inside or", q.Or(q.And(a, b), c), "(`a` = 1 AND `b` = 2) OR `c` = 3"},
		{"or inside and", q.And(q.Or(a, b), c), "(`a` = 1 OR `b` = 2) AND `c` = 3"},
		{"not", q.Not(a), "NOT (`a` = 1)"},
		{"add inside mul", q.Eq(q.Mul(q.Add(q.Col("x"), q.Lit(1)), q.Col("y")), q.Lit(0)), "(`x` + 1) * `y` = 0"},
		{"mul inside add", q.Eq(q.Add(q.Mul(q.Col("x"), q.Col("y")), q.Col("z")), q.Lit(0)), "`x` * `y` + `z` = 0"},
		{"right assoc sub", q.Eq(q.Sub(q.Col("x"), q.Sub(q.Col("y"), q.Col("z"))), q.Lit(0)), "`x` - (`y` - `z`) = 0"},
		{"is null", q.IsNotNull(q.Col("x")), "`x` IS NOT NULL"},
		{"like", q.Like(q.Lower(q.Col("n")), q.Lit("a%")), "LOWER(`n`) LIKE 'a%'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustSQL(t, h, q.Select().From("t").Where(tt.cond))
			assert.Equal(t, "SELECT * FROM `t` WHERE "+tt.want, got)
		})
	}
}

func TestSelectClauses(t *testing.T) {
	stmt := q.Select(q.TCol("u", "id"), q.As(q.Count(q.TCol("o", "id")), "orders")).
		From("users", "u").
		LeftJoin("orders", "o", q.Eq(q.TCol("o", "user_id"), q.TCol("u", "id"))).
		GroupBy(q.TCol("u", "id")).
		Having(q.Gt(q.Count(q.TCol("o", "id")), q.Lit(5))).
		OrderBy(q.Desc(q.Col("orders")))

	assert.Equal(t,
		"SELECT `u`.`id`, COUNT(`o`.`id`) AS `orders` FROM `users` `u` "+
			"LEFT JOIN `orders` `o` ON `o`.`user_id` = `u`.`id` "+
			"GROUP BY `u`.`id` HAVING COUNT(`o`.`id`) > 5 ORDER BY `orders` DESC",
		mustSQL(t, mysql.New(), stmt))
}

func TestLimitAndLocking(t *testing.T) {
	tests := []struct {
		h    dialect.Helper
		want string
	}{
		{mysql.New(), "SELECT * FROM `t` LIMIT 10 OFFSET 20 FOR UPDATE"},
		{postgresql.New(), `SELECT * FROM "t" LIMIT 10 OFFSET 20 FOR UPDATE`},
		{sqlite.New(), `SELECT * FROM "t" LIMIT 10 OFFSET 20`},
		{mssql.New(), "SELECT * FROM [t] ORDER BY (SELECT NULL) OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY"},
		{oracle.New(), `SELECT * FROM "t" OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY FOR UPDATE`},
	}
	for _, tt := range tests {
		t.Run(string(tt.h.Name()), func(t *testing.T) {
			stmt := q.Select().From("t").Limit(10).Offset(20).ForUpdate()
			assert.Equal(t, tt.want, mustSQL(t, tt.h, stmt))
		})
	}
}

func TestLiterals(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	stmt := q.Select().From("t").Where(
		q.Eq(q.Col("s"), q.Lit("it's")),
		q.Eq(q.Col("b"), q.Lit(true)),
		q.Eq(q.Col("f"), q.Lit(1.5)),
		q.Eq(q.Col("at"), q.Lit(ts)),
		q.IsNull(q.Col("n")),
	)

	compiled, err := New(sqlite.New()).Compile(stmt)
	require.NoError(t, err)
	text, args, err := compiled.Bind(nil)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "t" WHERE "s" = 'it''s' AND "b" = 1 AND "f" = 1.5 AND "at" = ? AND "n" IS NULL`, text)
	assert.Equal(t, []any{ts}, args)
}

func TestOracleSelectWithoutTable(t *testing.T) {
	assert.Equal(t, "SELECT 1 FROM DUAL", mustSQL(t, oracle.New(), q.Select(q.Lit(1))))
	assert.Equal(t, "SELECT 1", mustSQL(t, postgresql.New(), q.Select(q.Lit(1))))
}

func TestCast(t *testing.T) {
	expr := q.CastTo(q.Col("a"), core.TypeLong)
	assert.Equal(t, "SELECT CAST(`a` AS SIGNED)", mustSQL(t, mysql.New(), q.Select(expr)))
	assert.Equal(t, `SELECT CAST("a" AS BIGINT)`, mustSQL(t, postgresql.New(), q.Select(expr)))

	text := q.CastTo(q.Col("a"), core.TypeString, 20)
	assert.Equal(t, "SELECT CAST(`a` AS CHAR(20))", mustSQL(t, mysql.New(), q.Select(text)))
}

func TestParams(t *testing.T) {
	stmt := q.Select().From("t").Where(
		q.Eq(q.Col("a"), q.P("x", core.TypeInt)),
		q.Eq(q.Col("b"), q.P("y", core.TypeString)),
		q.Eq(q.Col("c"), q.P("x", core.TypeInt)),
	)
	compiled, err := New(postgresql.New()).Compile(stmt)
	require.NoError(t, err)

	assert.Equal(t, []q.Param{{Name: "x", Type: core.TypeInt}, {Name: "y", Type: core.TypeString}}, compiled.Params())

	text, args, err := compiled.Bind(Args{"x": 7, "y": "s", "extra": 1})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "t" WHERE "a" = $1 AND "b" = $2 AND "c" = $3`, text)
	assert.Equal(t, []any{int64(7), "s", int64(7)}, args)

	_, args, err = compiled.BindPositional(8, "z")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(8), "z", int64(8)}, args)

	_, _, err = compiled.BindPositional(8)
	assert.Error(t, err)
}

func TestParamErrors(t *testing.T) {
	c := New(mysql.New())

	_, err := c.Compile(q.Select().From("t").Where(
		q.Eq(q.Col("a"), q.P("x", core.TypeInt)),
		q.Eq(q.Col("b"), q.P("x", core.TypeString)),
	))
	assert.Error(t, err, "conflicting types")

	_, err = c.Compile(q.Select().From("t").Where(
		q.Eq(q.Col("a"), q.P("x", core.TypeInt)),
		q.InSet(q.Col("b"), q.SetP("x", core.TypeInt)),
	))
	assert.Error(t, err, "scalar and set")

	compiled, err := c.Compile(q.DeleteFrom("t").Where(q.Eq(q.Col("a"), q.P("x", core.TypeByte))))
	require.NoError(t, err)

	_, _, err = compiled.Bind(Args{})
	var missing *MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "x", missing.Name)

	_, _, err = compiled.Bind(Args{"x": 300})
	var coercion *core.CoercionError
	assert.ErrorAs(t, err, &coercion)

	_, err = c.Compile(q.Select(q.SetP("s", core.TypeInt)).From("t"))
	assert.Error(t, err, "set parameter outside IN")

	_, err = c.Compile(q.Select().From("t").Where(q.As(q.Col("a"), "b")))
	assert.Error(t, err, "alias outside select list")
}

func TestOracleConvertsBooleans(t *testing.T) {
	compiled, err := New(oracle.New()).Compile(q.Update("t").Set("active", q.P("on", core.TypeBoolean)))
	require.NoError(t, err)
	text, args, err := compiled.Bind(Args{"on": true})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "active" = :1`, text)
	assert.Equal(t, []any{int64(1)}, args)
}

func TestSetParameters(t *testing.T) {
	stmt := q.Select().From("t").Where(q.InSet(q.Col("id"), q.SetP("ids", core.TypeLong)))
	compiled, err := New(mysql.New()).Compile(stmt)
	require.NoError(t, err)

	_, err = compiled.SQL()
	assert.ErrorIs(t, err, ErrNotStatic)
	assert.True(t, compiled.IsSetParam("ids"))
	assert.Equal(t, "SELECT * FROM `t` WHERE `id` IN (:ids...)", compiled.String())

	text, args, err := compiled.Bind(Args{"ids": []int{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE `id` IN (?, ?, ?)", text)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, args)

	text, args, err = compiled.Bind(Args{"ids": []int{}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE 1=0", text)
	assert.Empty(t, args)

	negated, err := New(mysql.New()).Compile(q.Select().From("t").Where(q.NotInSet(q.Col("id"), q.SetP("ids", core.TypeLong))))
	require.NoError(t, err)
	text, _, err = negated.Bind(Args{"ids": nil})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `t` WHERE 1=1", text)

	_, _, err = compiled.Bind(Args{"ids": 5})
	assert.Error(t, err)
}

func TestSetParameterChunking(t *testing.T) {
	stmt := q.Select().From("t").Where(
		q.Eq(q.Col("tenant"), q.P("tenant", core.TypeLong)),
		q.InSet(q.Col("id"), q.SetP("ids", core.TypeLong)),
	)
	compiled, err := New(oracle.New()).Compile(stmt)
	require.NoError(t, err)

	ids := make([]int64, 2500)
	for i := range ids {
		ids[i] = int64(i)
	}
	text, args, err := compiled.Bind(Args{"tenant": 1, "ids": ids})
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(text, `"id" IN (`))
	assert.Equal(t, 2, strings.Count(text, " OR "))
	assert.Contains(t, text, `WHERE "tenant" = :1 AND ("id" IN (:2, `)
	assert.True(t, strings.HasSuffix(text, ":2501))"))
	assert.Len(t, args, 2501)

	negated, err := New(oracle.New()).Compile(q.Select().From("t").Where(q.NotInSet(q.Col("id"), q.SetP("ids", core.TypeLong))))
	require.NoError(t, err)
	text, _, err = negated.Bind(Args{"ids": ids})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, ") AND "))
}

func TestValueListChunking(t *testing.T) {
	values := make([]q.Expr, 1500)
	for i := range values {
		values[i] = q.Lit(i)
	}
	text := mustSQL(t, oracle.New(), q.Select().From("t").Where(q.In(q.Col("id"), values...)))
	assert.Equal(t, 2, strings.Count(text, `"id" IN (`))
	assert.Contains(t, text, `WHERE ("id" IN (0, 1, `)

	text = mustSQL(t, mysql.New(), q.Select().From("t").Where(q.In(q.Col("id"), values...)))
	assert.Equal(t, 1, strings.Count(text, "`id` IN ("))

	assert.Equal(t, "SELECT * FROM `t` WHERE 1=0", mustSQL(t, mysql.New(), q.Select().From("t").Where(q.In(q.Col("id")))))
}

func TestSubqueries(t *testing.T) {
	banned := q.Select(q.Col("user_id")).From("bans").Where(q.Eq(q.Col("reason"), q.P("reason", core.TypeString)))
	stmt := q.Select(q.Col("id")).From("users").Where(
		q.Eq(q.Col("tenant"), q.P("tenant", core.TypeLong)),
		q.Not(q.InQuery(q.Col("id"), banned)),
		q.Exists(q.Select(q.Lit(1)).From("orders").Where(q.Eq(q.TCol("orders", "user_id"), q.TCol("users", "id")))),
	)
	compiled, err := New(postgresql.New()).Compile(stmt)
	require.NoError(t, err)
	text, err := compiled.SQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "tenant" = $1 AND NOT ("id" IN (SELECT "user_id" FROM "bans" WHERE "reason" = $2)) `+
		`AND EXISTS (SELECT 1 FROM "orders" WHERE "orders"."user_id" = "users"."id")`, text)
	assert.Len(t, compiled.Params(), 2)
}

func TestInsert(t *testing.T) {
	stmt := q.InsertInto("users").Columns("id", "name").Values(1, "a").Values(2, q.P("name", core.TypeString))
	assert.Equal(t, "INSERT INTO `users` (`id`, `name`) VALUES (1, 'a'), (2, ?)", mustSQL(t, mysql.New(), stmt))
	assert.Equal(t,
		`INSERT ALL INTO "users" ("id", "name") VALUES (1, 'a') INTO "users" ("id", "name") VALUES (2, :1) SELECT 1 FROM DUAL`,
		mustSQL(t, oracle.New(), stmt))

	fromSelect := q.InsertInto("archive").Columns("id").FromSelect(q.Select(q.Col("id")).From("users"))
	assert.Equal(t, `INSERT INTO "archive" ("id") SELECT "id" FROM "users"`, mustSQL(t, postgresql.New(), fromSelect))

	c := New(mysql.New())
	_, err := c.Compile(q.InsertInto("users").Columns("id", "name").Values(1))
	assert.Error(t, err)
	_, err = c.Compile(q.InsertInto("users"))
	assert.Error(t, err)
}

func TestUpdateDelete(t *testing.T) {
	upd := q.Update("users").Set("name", "x").Set("visits", q.Add(q.Col("visits"), q.Lit(1))).Where(q.Eq(q.Col("id"), q.P("id", core.TypeID)))
	assert.Equal(t, "UPDATE [users] SET [name] = N'x', [visits] = [visits] + 1 WHERE [id] = @p1", mustSQL(t, mssql.New(), upd))

	del := q.DeleteFrom("users").Where(q.Lt(q.Col("age"), q.Lit(18)))
	assert.Equal(t, `DELETE FROM "users" WHERE "age" < 18`, mustSQL(t, sqlite.New(), del))

	_, err := New(mysql.New()).Compile(q.Update("users"))
	assert.Error(t, err)
}

func usersTable() *core.Table {
	return core.NewTable("users").
		AddColumn(&core.Column{Name: "id", Type: core.TypeID, AutoIncrement: true, Mandatory: true}).
		AddColumn(&core.Column{Name: "email", Type: core.TypeString, Size: 255, Mandatory: true}).
		SetPrimaryKey("id").
		AddIndex("idx_users_email", true, "email")
}

func TestCreateTable(t *testing.T) {
	compiled, err := New(mysql.New()).Compile(q.CreateTable(usersTable()))
	require.NoError(t, err)
	assert.True(t, compiled.IsDDL())
	assert.Equal(t, []string{
		"CREATE TABLE `users` (\n  `id` BIGINT NOT NULL AUTO_INCREMENT,\n  `email` VARCHAR(255) NOT NULL,\n  PRIMARY KEY (`id`)\n)",
		"CREATE UNIQUE INDEX `idx_users_email` ON `users` (`email`)",
	}, compiled.Batch())
}

func TestCreateTableInlinesForeignKeysOnSQLite(t *testing.T) {
	orders := core.NewTable("orders").
		AddColumn(&core.Column{Name: "id", Type: core.TypeID, AutoIncrement: true, Mandatory: true}).
		AddColumn(&core.Column{Name: "user_id", Type: core.TypeLong, Mandatory: true}).
		SetPrimaryKey("id").
		AddForeignKey(&core.ForeignKey{Name: "fk_orders_user", Columns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}, OnDelete: core.RefActionCascade})

	compiled, err := New(sqlite.New()).Compile(q.CreateTable(orders))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE TABLE \"orders\" (\n" +
			"  \"id\" INTEGER PRIMARY KEY AUTOINCREMENT,\n" +
			"  \"user_id\" BIGINT NOT NULL,\n" +
			"  CONSTRAINT \"fk_orders_user\" FOREIGN KEY (\"user_id\") REFERENCES \"users\" (\"id\") ON DELETE CASCADE\n" +
			")",
	}, compiled.Batch())

	// postgres adds foreign keys separately unless asked
	compiled, err = New(postgresql.New()).Compile(q.CreateTable(orders))
	require.NoError(t, err)
	assert.NotContains(t, compiled.Batch()[0], "FOREIGN KEY")

	compiled, err = New(postgresql.New()).Compile(&q.CreateTableStmt{Table: orders, WithForeignKeys: true})
	require.NoError(t, err)
	assert.Contains(t, compiled.Batch()[0], "FOREIGN KEY")
}

func TestCreateTableIfNotExists(t *testing.T) {
	stmt := &q.CreateTableStmt{Table: usersTable(), IfNotExists: true}
	compiled, err := New(postgresql.New()).Compile(stmt)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(compiled.Batch()[0], `CREATE TABLE IF NOT EXISTS "users"`))

	_, err = New(oracle.New()).Compile(stmt)
	assert.ErrorIs(t, err, dialect.ErrUnsupported)
}

func TestAlterTable(t *testing.T) {
	tbl := usersTable()
	stmt := q.AlterTable(tbl).
		AddColumn(&core.Column{Name: "age", Type: core.TypeInt}).
		DropColumn("legacy").
		RenameColumn("email", "mail")

	compiled, err := New(postgresql.New()).Compile(stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`ALTER TABLE "users" ADD COLUMN "age" INTEGER`,
		`ALTER TABLE "users" DROP COLUMN "legacy"`,
		`ALTER TABLE "users" RENAME COLUMN "email" TO "mail"`,
	}, compiled.Batch())

	text, err := compiled.SQL()
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, ";\n"))

	_, err = New(sqlite.New()).Compile(q.AlterTable(tbl).ModifyColumn(tbl.FindColumn("email"), &core.Column{Name: "email", Type: core.TypeClob}))
	assert.True(t, errors.Is(err, dialect.ErrUnsupported))

	_, err = New(mysql.New()).Compile(q.AlterTable(tbl))
	assert.Error(t, err)
}

func TestOtherDDL(t *testing.T) {
	h := mysql.New()
	assert.Equal(t, "DROP TABLE IF EXISTS `users`", mustSQL(t, h, &q.DropTableStmt{Name: "users", IfExists: true}))
	assert.Equal(t, "RENAME TABLE `a` TO `b`", mustSQL(t, h, q.RenameTable("a", "b")))
	assert.Equal(t, "DELETE FROM `b`;\nDELETE FROM `a`", mustSQL(t, h, q.Truncate("b", "a")))
	assert.Equal(t, `TRUNCATE TABLE "b", "a"`, mustSQL(t, postgresql.New(), q.Truncate("b", "a")))
	_, err := New(h).Compile(q.Truncate())
	assert.Error(t, err)
	assert.Equal(t, "DROP INDEX `ix` ON `a`", mustSQL(t, h, q.DropIndex("a", &core.Index{Name: "ix"})))
	assert.Equal(t, "CREATE INDEX `ix` ON `a` (`x`)", mustSQL(t, h, q.CreateIndex("a", &core.Index{Name: "ix", Columns: []core.IndexColumn{{Name: "x"}}})))
}

func TestAlterTableOptions(t *testing.T) {
	tbl := &core.Table{Name: "users"}

	assert.Equal(t, "ALTER TABLE `users` COMMENT='people'", mustSQL(t, mysql.New(), q.AlterTable(tbl).SetComment("people")))
	assert.Equal(t, "ALTER TABLE `users` ENGINE=InnoDB", mustSQL(t, mysql.New(), q.AlterTable(tbl).SetEngine("InnoDB")))
	assert.Equal(t, `COMMENT ON TABLE "users" IS 'people'`, mustSQL(t, postgresql.New(), q.AlterTable(tbl).SetComment("people")))

	_, err := New(postgresql.New()).Compile(q.AlterTable(tbl).SetEngine("InnoDB"))
	assert.ErrorIs(t, err, dialect.ErrUnsupported)
	_, err = New(sqlite.New()).Compile(q.AlterTable(tbl).SetComment("people"))
	assert.ErrorIs(t, err, dialect.ErrUnsupported)
	_, err = New(mssql.New()).Compile(q.AlterTable(tbl).SetComment("people"))
	assert.ErrorIs(t, err, dialect.ErrUnsupported)
}

func TestClearTableComment(t *testing.T) {
	tbl := &core.Table{Name: "users"}

	assert.Equal(t, "ALTER TABLE `users` COMMENT=''", mustSQL(t, mysql.New(), q.AlterTable(tbl).SetComment("")))
	assert.Equal(t, `COMMENT ON TABLE "users" IS NULL`, mustSQL(t, postgresql.New(), q.AlterTable(tbl).SetComment("")))
	assert.Equal(t, `COMMENT ON TABLE "users" IS ''`, mustSQL(t, oracle.New(), q.AlterTable(tbl).SetComment("")))
}
