//go:build integration

package db

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresFixture = `
CREATE SCHEMA moodle;
CREATE TABLE moodle."user" (id BIGSERIAL PRIMARY KEY, username VARCHAR(100) NOT NULL UNIQUE, mnethostid BIGINT);
CREATE TABLE moodle.mnethost (id BIGSERIAL PRIMARY KEY, name TEXT);
CREATE TABLE public.unrelated (id INTEGER PRIMARY KEY);
INSERT INTO moodle.mnethost (id, name) VALUES (1, 'local'), (2, 'remote');
INSERT INTO moodle."user" (id, username, mnethostid) VALUES (10, 'ana', 1), (11, 'ben', NULL), (12, 'cai', 2);
`

var (
	sharedPostgresURL  string
	sharedPostgresOnce sync.Once
	sharedPostgresErr  error
)

// getPostgresURL starts one PostgreSQL container for the whole test run and
// loads the fixture into it
func getPostgresURL(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedPostgresOnce.Do(func() {
		sharedPostgresURL, sharedPostgresErr = startPostgres()
	})
	if sharedPostgresErr != nil {
		t.Fatalf("Failed to set up PostgreSQL: %v", sharedPostgresErr)
	}
	return sharedPostgresURL
}

func startPostgres() (string, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "moodle",
			"POSTGRES_USER":     "lala",
			"POSTGRES_PASSWORD": "test_password",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://lala:test_password@%s:%s/moodle?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return "", fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, postgresFixture); err != nil {
		return "", fmt.Errorf("failed to load fixture: %w", err)
	}
	return connStr, nil
}

func TestPostgresSource(t *testing.T) {
	ctx := context.Background()

	client, err := NewPostgresClient(ctx, getPostgresURL(t))
	require.NoError(t, err)
	source := NewExtractor(client, "moodle")
	defer func() { _ = source.Close() }()

	tables, err := source.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mnethost", "user"}, tables)

	columns, err := source.ListColumns(ctx, "user")
	require.NoError(t, err)
	require.Len(t, columns, 3)
	assert.Equal(t, "id", columns[0].Name)
	assert.True(t, columns[0].IsUnique)
	assert.Equal(t, "character varying", columns[1].Type)
	assert.Equal(t, "bigint", columns[2].Type)
	assert.True(t, columns[1].IsUnique)
	assert.False(t, columns[1].Nullable)
	assert.True(t, columns[2].Nullable)

	rows, err := source.FetchRowsByIDs(ctx, "user", "id", []int64{10, 11, 99}, []string{"id", "mnethostid"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byID := make(map[int64]any)
	for _, row := range rows {
		byID[row["id"].(int64)] = row["mnethostid"]
	}
	assert.Equal(t, int64(1), byID[10])
	assert.Nil(t, byID[11])

	rows, err = source.FetchRowsByIDs(ctx, "mnethost", "id", []int64{2}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "remote", rows[0]["name"])
}

func TestPostgresClientIsReadOnly(t *testing.T) {
	ctx := context.Background()

	client, err := NewPostgresClient(ctx, getPostgresURL(t))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.GetPool().Exec(ctx, `DELETE FROM moodle.mnethost`)
	assert.Error(t, err)
}
