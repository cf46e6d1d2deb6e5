//go:build integration

package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/lala/internal/relations"
)

const moodleFixture = `
CREATE TABLE user (id INTEGER PRIMARY KEY, username TEXT NOT NULL UNIQUE, email TEXT, mnethostid INTEGER);
CREATE TABLE mnethost (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE log (id INTEGER PRIMARY KEY, userid INTEGER, courseid INTEGER, action TEXT);
INSERT INTO mnethost VALUES (1, 'local'), (2, 'remote');
INSERT INTO user VALUES (10, 'ana', 'ana@example.org', 1), (11, 'ben', NULL, 1), (12, 'cai', 'cai@example.org', 2);
INSERT INTO log VALUES (100, 10, NULL, 'view'), (101, 11, 5, 'post');
`

// createSQLiteFixture writes a small Moodle-shaped database and returns its path
func createSQLiteFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "moodle.db")
	writable, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer func() { _ = writable.Close() }()

	_, err = writable.Exec(moodleFixture)
	require.NoError(t, err)
	return path
}

func TestSQLiteSource(t *testing.T) {
	ctx := context.Background()

	client, err := NewSQLiteClient(ctx, createSQLiteFixture(t))
	require.NoError(t, err)
	source := NewSQLiteExtractor(client)
	defer func() { _ = source.Close() }()

	tables, err := source.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "mnethost", "user"}, tables)

	columns, err := source.ListColumns(ctx, "user")
	require.NoError(t, err)
	require.Len(t, columns, 4)
	assert.Equal(t, "id", columns[0].Name)
	assert.True(t, columns[0].IsUnique)
	assert.Equal(t, "username", columns[1].Name)
	assert.True(t, columns[1].IsUnique)
	assert.False(t, columns[1].Nullable)
	assert.False(t, columns[2].IsUnique)
	assert.True(t, columns[2].Nullable)

	rows, err := source.FetchRowsByIDs(ctx, "user", "id", []int64{10, 12, 99}, []string{"id", "email"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Len(t, row, 2)
		assert.IsType(t, int64(0), row["id"])
	}

	rows, err = source.FetchRowsByIDs(ctx, "log", "id", []int64{100}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "view", rows[0]["action"])
	assert.Nil(t, rows[0]["courseid"])

	rows, err = source.FetchRowsByIDs(ctx, "log", "id", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLiteSourceChunksLargeIDLists(t *testing.T) {
	ctx := context.Background()

	client, err := NewSQLiteClient(ctx, createSQLiteFixture(t))
	require.NoError(t, err)
	source := NewSQLiteExtractor(client)
	defer func() { _ = source.Close() }()

	ids := make([]int64, 0, 2*fetchChunkSize+1)
	for i := int64(0); i < 2*fetchChunkSize+1; i++ {
		ids = append(ids, i)
	}

	rows, err := source.FetchRowsByIDs(ctx, "user", "id", ids, []string{"id"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSQLiteClientIsReadOnly(t *testing.T) {
	ctx := context.Background()

	client, err := NewSQLiteClient(ctx, createSQLiteFixture(t))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = client.GetDB().ExecContext(ctx, "DELETE FROM user")
	assert.Error(t, err)
}

const prefixedMoodleFixture = `
CREATE TABLE mdl_user (id INTEGER PRIMARY KEY, username TEXT, mnethostid INTEGER);
CREATE TABLE mdl_mnethost (id INTEGER PRIMARY KEY, name TEXT);
CREATE TABLE backup_user (id INTEGER PRIMARY KEY);
INSERT INTO mdl_mnethost VALUES (1, 'local'), (2, 'remote');
INSERT INTO mdl_user VALUES (3, 'ana', 1), (4, 'ben', 1), (5, 'cai', 2);
`

func TestSQLiteSourceWithTablePrefix(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "moodle.db")
	writable, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = writable.Exec(prefixedMoodleFixture)
	require.NoError(t, err)
	require.NoError(t, writable.Close())

	client, err := NewSQLiteClient(ctx, path)
	require.NoError(t, err)
	source := WithTablePrefix(NewSQLiteExtractor(client), "mdl_")
	defer func() { _ = source.Close() }()

	tables, err := source.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mnethost", "user"}, tables)

	graph, err := relations.NewWalker(source, source, nil).Discover(ctx, "user", []int64{3, 4, 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "mnethost"}, graph.Tables())
	assert.ElementsMatch(t, []int64{1, 2}, graph.IDs("mnethost"))

	rows, err := source.FetchRowsByIDs(ctx, "mnethost", "id", []int64{2}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "remote", rows[0]["name"])
}
