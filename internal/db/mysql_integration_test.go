//go:build integration

package db

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/lala/internal/schema"
)

var mysqlFixture = []string{
	"DROP TABLE IF EXISTS lala_user",
	"CREATE TABLE lala_user (id BIGINT PRIMARY KEY, username VARCHAR(100) NOT NULL UNIQUE, mnethostid BIGINT NULL)",
	"INSERT INTO lala_user VALUES (10, 'ana', 1), (11, 'ben', NULL), (12, 'cai', 2)",
}

// mysqlDSN returns the DSN of a scratch MySQL database. The database is
// provided by the environment, e.g. a docker compose service.
func mysqlDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}

	writable, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer func() { _ = writable.Close() }()

	for _, stmt := range mysqlFixture {
		_, err := writable.Exec(stmt)
		require.NoError(t, err)
	}
	return dsn
}

func TestMySQLSource(t *testing.T) {
	ctx := context.Background()
	dsn := mysqlDSN(t)

	schemaName, err := ParseDatabaseName(dsn)
	require.NoError(t, err)
	client, err := NewMySQLClient(ctx, dsn)
	require.NoError(t, err)
	source := NewMySQLExtractor(client, schemaName)
	defer func() { _ = source.Close() }()

	tables, err := source.ListTables(ctx)
	require.NoError(t, err)
	assert.Contains(t, tables, "lala_user")

	columns, err := source.ListColumns(ctx, "lala_user")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.True(t, columns[0].IsUnique)
	assert.True(t, columns[1].IsUnique)
	assert.True(t, columns[2].Nullable)

	rows, err := source.FetchRowsByIDs(ctx, "lala_user", "id", []int64{10, 11}, []string{"id", "mnethostid"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		id, err := schema.ToID(row["id"])
		require.NoError(t, err)
		if id == 11 {
			assert.Nil(t, row["mnethostid"])
		}
	}

	_, err = client.GetDB().ExecContext(ctx, "DELETE FROM lala_user")
	assert.Error(t, err, "the client runs read-only transactions")
}
