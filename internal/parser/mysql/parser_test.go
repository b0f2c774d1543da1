package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlkit/internal/core"
)

const dump = "SET NAMES utf8mb4;\n" +
	"CREATE DATABASE shop;\n" +
	"CREATE TABLE `users` (\n" +
	"  `id` bigint NOT NULL AUTO_INCREMENT,\n" +
	"  `email` varchar(100) COLLATE utf8mb4_bin NOT NULL COMMENT 'login',\n" +
	"  `active` tinyint(1) NOT NULL DEFAULT '1',\n" +
	"  `created` datetime DEFAULT CURRENT_TIMESTAMP,\n" +
	"  `note` text,\n" +
	"  PRIMARY KEY (`id`),\n" +
	"  UNIQUE KEY `idx_users_email` (`email`)\n" +
	") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='people';\n" +
	"CREATE TABLE `orders` (\n" +
	"  `id` bigint NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
	"  `user_id` bigint NOT NULL,\n" +
	"  `total` decimal(12,2) DEFAULT NULL,\n" +
	"  `status` char(1) DEFAULT 'N',\n" +
	"  KEY (`user_id`, `total` DESC),\n" +
	"  CONSTRAINT `fk_orders_user` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`) ON DELETE CASCADE ON UPDATE NO ACTION\n" +
	");\n" +
	"INSERT INTO `orders` VALUES (1, 1, 10.00, 'N');\n"

func TestParseDump(t *testing.T) {
	schema, err := NewParser().Parse(dump)
	require.NoError(t, err)
	assert.Equal(t, "shop", schema.Name)
	require.Len(t, schema.Tables, 2)

	users := schema.FindTable("users")
	require.NotNil(t, users)
	assert.Equal(t, "people", users.Comment)
	assert.Equal(t, "InnoDB", users.Engine)
	assert.Equal(t, []string{"id"}, users.PrimaryKey.Columns)

	id := users.FindColumn("id")
	assert.Equal(t, core.TypeLong, id.Type)
	assert.True(t, id.AutoIncrement)
	assert.True(t, id.Mandatory)

	email := users.FindColumn("email")
	assert.Equal(t, core.TypeString, email.Type)
	assert.Equal(t, 100, email.Size)
	assert.True(t, email.Binary)
	assert.True(t, email.Mandatory)
	assert.Equal(t, "login", email.Comment)

	active := users.FindColumn("active")
	assert.Equal(t, core.TypeBoolean, active.Type)
	require.NotNil(t, active.DefaultValue)
	assert.Equal(t, "1", *active.DefaultValue)

	created := users.FindColumn("created")
	assert.Equal(t, core.TypeDateTime, created.Type)
	require.NotNil(t, created.DefaultValue)
	assert.Equal(t, "CURRENT_TIMESTAMP", *created.DefaultValue)
	assert.False(t, created.Mandatory)

	assert.Equal(t, core.TypeClob, users.FindColumn("note").Type)

	require.Len(t, users.Indexes, 1)
	assert.Equal(t, "idx_users_email", users.Indexes[0].Name)
	assert.True(t, users.Indexes[0].Unique)
}

func TestParseDumpKeysAndForeignKeys(t *testing.T) {
	schema, err := NewParser().Parse(dump)
	require.NoError(t, err)
	orders := schema.FindTable("orders")
	require.NotNil(t, orders)

	assert.Equal(t, []string{"id"}, orders.PrimaryKey.Columns)
	total := orders.FindColumn("total")
	assert.Equal(t, core.TypeDecimal, total.Type)
	assert.Equal(t, 12, total.Size)
	assert.Equal(t, 2, total.Precision)
	assert.Nil(t, total.DefaultValue, "DEFAULT NULL is no default")

	status := orders.FindColumn("status")
	assert.Equal(t, core.TypeChar, status.Type)
	require.NotNil(t, status.DefaultValue)
	assert.Equal(t, "N", *status.DefaultValue)

	require.Len(t, orders.Indexes, 1)
	idx := orders.Indexes[0]
	assert.Equal(t, "user_id", idx.Name, "unnamed keys are named after their first column")
	assert.False(t, idx.Unique)
	assert.Equal(t, []core.IndexColumn{{Name: "user_id"}, {Name: "total", Desc: true}}, idx.Columns)

	require.Len(t, orders.ForeignKeys, 1)
	fk := orders.ForeignKeys[0]
	assert.Equal(t, "fk_orders_user", fk.Name)
	assert.Equal(t, []string{"user_id"}, fk.Columns)
	assert.Equal(t, "users", fk.RefTable)
	assert.Equal(t, []string{"id"}, fk.RefColumns)
	assert.Equal(t, core.RefActionCascade, fk.OnDelete)
	assert.Equal(t, core.RefActionNone, fk.OnUpdate)

	require.NoError(t, schema.Validate())
}

func TestParseInlineConstraints(t *testing.T) {
	schema, err := NewParser().Parse("CREATE TABLE t (" +
		"a INT PRIMARY KEY, " +
		"b VARCHAR(20) UNIQUE, " +
		"c INT REFERENCES p (id) ON DELETE SET NULL, " +
		"d VARCHAR(10) DEFAULT 'it''s')")
	require.NoError(t, err)
	table := schema.Tables[0]

	assert.Equal(t, []string{"a"}, table.PrimaryKey.Columns)
	assert.True(t, table.FindColumn("a").Mandatory)
	require.Len(t, table.Indexes, 1)
	assert.Equal(t, "b", table.Indexes[0].Name)
	assert.True(t, table.Indexes[0].Unique)

	require.Len(t, table.ForeignKeys, 1)
	assert.Equal(t, "p", table.ForeignKeys[0].RefTable)
	assert.Equal(t, core.RefActionSetNull, table.ForeignKeys[0].OnDelete)
	assert.Equal(t, "fk_t_c", table.ForeignKeys[0].Name)

	require.NotNil(t, table.FindColumn("d").DefaultValue)
	assert.Equal(t, "it's", *table.FindColumn("d").DefaultValue)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr string
	}{
		{name: "syntax", sql: "CREATE TABLE (", wantErr: "failed to parse MySQL dump"},
		{name: "unsupported type", sql: "CREATE TABLE t (g BIT(8))", wantErr: "column g"},
		{name: "generated column", sql: "CREATE TABLE t (a INT, b INT AS (a + 1))", wantErr: "generated columns"},
		{name: "create like", sql: "CREATE TABLE t LIKE u", wantErr: "LIKE"},
		{name: "fulltext", sql: "CREATE TABLE t (a TEXT, FULLTEXT KEY ft (a))", wantErr: "fulltext"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse(tt.sql)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTryUnquoteSQLStringLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"'abc'", "abc", true},
		{"'it''s'", "it's", true},
		{"_utf8mb4'x'", "x", true},
		{"N'y'", "y", true},
		{"_bad-name'z'", "", false},
		{"42", "", false},
		{"'", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := tryUnquoteSQLStringLiteral(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
