package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/tordrt/lala/internal/schema"
)

// fetchChunkSize bounds the number of ids bound into a single IN list
const fetchChunkSize = 1000

// Source is the database capability the anonymization pipeline consumes:
// schema introspection plus id-based row access
type Source interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]schema.Column, error)
	FetchRowsByIDs(ctx context.Context, table, idColumn string, ids []int64, columns []string) ([]schema.Row, error)
	Close() error
}

// normalizeValue converts driver values into the plain types the rest of the
// pipeline handles
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case driver.Valuer:
		out, err := val.Value()
		if err != nil {
			return fmt.Sprint(val)
		}
		return normalizeValue(out)
	default:
		return v
	}
}

// fetchSQLRows runs an IN-list query once per chunk of ids. build receives
// the placeholder list for a chunk and returns the query text.
func fetchSQLRows(ctx context.Context, db *sql.DB, ids []int64, build func(placeholders string) string) ([]schema.Row, error) {
	var result []schema.Row

	for _, chunk := range lo.Chunk(ids, fetchChunkSize) {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
		args := lo.Map(chunk, func(id int64, _ int) any { return id })

		rows, err := db.QueryContext(ctx, build(placeholders), args...)
		if err != nil {
			return nil, err
		}

		chunkRows, err := scanSQLRows(rows)
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
		result = append(result, chunkRows...)
	}

	return result, nil
}

func scanSQLRows(rows *sql.Rows) ([]schema.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []schema.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(schema.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// selectColumns falls back to every column of the table when none are requested
func selectColumns(ctx context.Context, s Source, table string, columns []string) ([]string, error) {
	if len(columns) > 0 {
		return columns, nil
	}

	cols, err := s.ListColumns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}

	return lo.Map(cols, func(c schema.Column, _ int) string { return c.Name }), nil
}
