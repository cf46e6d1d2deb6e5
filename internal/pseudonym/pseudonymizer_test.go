package pseudonym

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/lala/internal/apperrors"
	"github.com/tordrt/lala/internal/idmap"
	"github.com/tordrt/lala/internal/schema"
)

func mustMap(t *testing.T, ids, pseudonyms []int64) *idmap.Map {
	t.Helper()
	m, err := idmap.New(ids, pseudonyms)
	require.NoError(t, err)
	return m
}

func TestPseudonymize(t *testing.T) {
	rows := []schema.Row{
		{"id": int64(1), "userid": int64(4), "grade": "A"},
		{"id": int64(2), "userid": int64(5), "grade": "B"},
		{"id": int64(3), "userid": int64(6), "grade": "C"},
	}
	own := mustMap(t, []int64{1, 2, 3}, []int64{7, 8, 9})
	idmaps := map[string]*idmap.Map{
		"grades": own,
		"user":   mustMap(t, []int64{4, 5, 6}, []int64{10, 11, 12}),
	}

	out, err := New(nil).Pseudonymize(rows, idmaps, "grades")
	require.NoError(t, err)
	require.Len(t, out, 3)

	var ids, userIDs []int64
	for _, row := range out {
		ids = append(ids, row["id"].(int64))
		userIDs = append(userIDs, row["userid"].(int64))

		original, err := own.OriginalID(row["id"].(int64))
		require.NoError(t, err)
		assert.Equal(t, rows[original-1]["grade"], row["grade"])
	}
	assert.ElementsMatch(t, []int64{7, 8, 9}, ids)
	assert.ElementsMatch(t, []int64{10, 11, 12}, userIDs)

	assert.Equal(t, int64(1), rows[0]["id"], "input rows are not modified")
}

func TestPseudonymizeResolution(t *testing.T) {
	idmaps := map[string]*idmap.Map{
		"log":         mustMap(t, []int64{1}, []int64{500}),
		"user":        mustMap(t, []int64{4, 5}, []int64{40, 50}),
		"course":      mustMap(t, []int64{9}, []int64{90}),
		"user_enrol":  mustMap(t, []int64{6}, []int64{60}),
		"course_sect": mustMap(t, []int64{3}, []int64{30}),
	}

	rows := []schema.Row{{
		"id":            int64(1),
		"userid":        int64(4),
		"relateduserid": "5",
		"courseID":      int64(9),
		"user_enrolid":  int64(6),
		"contextid":     int64(77),
		"idnumber":      "X-1",
		"objectid":      nil,
		"realuserid":    "",
		"timecreated":   int64(1700000000),
	}}

	out, err := New(nil).Pseudonymize(rows, idmaps, "log")
	require.NoError(t, err)
	row := out[0]

	assert.Equal(t, int64(500), row["id"])
	assert.Equal(t, int64(40), row["userid"])
	assert.Equal(t, int64(50), row["relateduserid"], "prefixed names resolve by suffix")
	assert.Equal(t, int64(90), row["courseID"], "matching is case-insensitive")
	assert.Equal(t, int64(60), row["user_enrolid"], "underscored table names resolve")
	assert.Equal(t, int64(77), row["contextid"], "unknown tables are left alone")
	assert.Equal(t, "X-1", row["idnumber"])
	assert.Nil(t, row["objectid"])
	assert.Equal(t, "", row["realuserid"])
	assert.Equal(t, int64(1700000000), row["timecreated"])
}

func TestPseudonymizeMixedCaseTables(t *testing.T) {
	idmaps := map[string]*idmap.Map{
		"Log":    mustMap(t, []int64{1}, []int64{100}),
		"Course": mustMap(t, []int64{42}, []int64{900}),
		"course": mustMap(t, []int64{42}, []int64{700}),
	}
	rows := []schema.Row{{"id": int64(1), "Courseid": int64(42), "courseid": int64(42), "COURSEID": int64(42)}}

	out, err := New(nil).Pseudonymize(rows, idmaps, "Log")
	require.NoError(t, err)
	row := out[0]

	assert.Equal(t, int64(100), row["id"])
	assert.Equal(t, int64(900), row["Courseid"], "exact case wins")
	assert.Equal(t, int64(700), row["courseid"])
	assert.Contains(t, []any{int64(900), int64(700)}, row["COURSEID"], "falls back to a case-insensitive match")
}

func TestPseudonymizeLongestSuffixWins(t *testing.T) {
	idmaps := map[string]*idmap.Map{
		"t":         mustMap(t, []int64{1}, []int64{100}),
		"user":      mustMap(t, []int64{2}, []int64{200}),
		"enroluser": mustMap(t, []int64{2}, []int64{300}),
	}
	rows := []schema.Row{{"id": int64(1), "manualenroluserid": int64(2)}}

	out, err := New(nil).Pseudonymize(rows, idmaps, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(300), out[0]["manualenroluserid"])
}

func TestPseudonymizePluralTables(t *testing.T) {
	idmaps := map[string]*idmap.Map{
		"orders": mustMap(t, []int64{1}, []int64{100}),
		"users":  mustMap(t, []int64{2}, []int64{200}),
	}
	rows := []schema.Row{{"id": int64(1), "user_id": int64(2)}}

	out, err := New(nil).Pseudonymize(rows, idmaps, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(2), out[0]["user_id"])

	out, err = New(nil, WithPluralTables()).Pseudonymize(rows, idmaps, "orders")
	require.NoError(t, err)
	assert.Equal(t, int64(200), out[0]["user_id"])
}

func TestPseudonymizeErrors(t *testing.T) {
	idmaps := map[string]*idmap.Map{
		"post": mustMap(t, []int64{1}, []int64{100}),
		"user": mustMap(t, []int64{2}, []int64{200}),
	}

	tests := []struct {
		name    string
		rows    []schema.Row
		table   string
		wantErr error
	}{
		{
			name:    "no map for the table",
			rows:    []schema.Row{{"id": int64(1)}},
			table:   "forum",
			wantErr: apperrors.ErrConfiguration,
		},
		{
			name:    "unknown primary id",
			rows:    []schema.Row{{"id": int64(9)}},
			table:   "post",
			wantErr: apperrors.ErrNotFound,
		},
		{
			name:    "unknown foreign id",
			rows:    []schema.Row{{"id": int64(1), "userid": int64(3)}},
			table:   "post",
			wantErr: apperrors.ErrNotFound,
		},
		{
			name:    "non numeric foreign id",
			rows:    []schema.Row{{"id": int64(1), "userid": "guest"}},
			table:   "post",
			wantErr: apperrors.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil).Pseudonymize(tt.rows, idmaps, tt.table)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPseudonymizeShufflesRows(t *testing.T) {
	const n = 100
	ids := make([]int64, n)
	rows := make([]schema.Row, n)
	for i := range ids {
		ids[i] = int64(i + 1)
		rows[i] = schema.Row{"id": ids[i]}
	}
	// Identity pseudonyms keep the output comparable with the input order.
	idmaps := map[string]*idmap.Map{"t": mustMap(t, ids, ids)}
	p := New(nil)

	reordered := 0
	for run := 0; run < 5; run++ {
		out, err := p.Pseudonymize(rows, idmaps, "t")
		require.NoError(t, err)
		for i, row := range out {
			if row["id"] != ids[i] {
				reordered++
				break
			}
		}
	}
	assert.Equal(t, 5, reordered, "output order matched input order")
}

func TestPseudonymizeEmptyRows(t *testing.T) {
	idmaps := map[string]*idmap.Map{"t": mustMap(t, []int64{1}, []int64{100})}

	out, err := New(nil).Pseudonymize(nil, idmaps, "t")
	require.NoError(t, err)
	assert.Empty(t, out)
}
