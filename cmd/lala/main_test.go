package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int64
		wantErr bool
	}{
		{name: "single id", input: "7", want: []int64{7}},
		{name: "multiple ids", input: "1,2,3", want: []int64{1, 2, 3}},
		{name: "ids with spaces", input: " 1 , 2 ,3 ", want: []int64{1, 2, 3}},
		{name: "trailing comma", input: "4,5,", want: []int64{4, 5}},
		{name: "empty", input: "", wantErr: true},
		{name: "only commas", input: ",,", wantErr: true},
		{name: "non numeric", input: "1,two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDatabaseURL(t *testing.T) {
	tests := []struct {
		name       string
		dbURL      string
		mysqlURL   string
		sqlitePath string
		configured string
		want       string
		wantErr    bool
	}{
		{name: "postgres flag", dbURL: "postgres://u:p@localhost/moodle", want: "postgres://u:p@localhost/moodle"},
		{name: "mysql flag gets scheme", mysqlURL: "u:p@tcp(localhost:3306)/moodle", want: "mysql://u:p@tcp(localhost:3306)/moodle"},
		{name: "mysql flag keeps scheme", mysqlURL: "mysql://u:p@tcp(localhost:3306)/moodle", want: "mysql://u:p@tcp(localhost:3306)/moodle"},
		{name: "sqlite flag", sqlitePath: "/tmp/moodle.db", want: "sqlite:///tmp/moodle.db"},
		{name: "flag overrides configuration", sqlitePath: "a.db", configured: "postgres://x", want: "sqlite://a.db"},
		{name: "configuration fallback", configured: "sqlite://b.db", want: "sqlite://b.db"},
		{name: "nothing set", wantErr: true},
		{name: "two flags", dbURL: "postgres://x", sqlitePath: "a.db", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbURL, mysqlURL, sqlitePath = tt.dbURL, tt.mysqlURL, tt.sqlitePath
			t.Cleanup(func() { dbURL, mysqlURL, sqlitePath = "", "", "" })

			got, err := resolveDatabaseURL(tt.configured)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
