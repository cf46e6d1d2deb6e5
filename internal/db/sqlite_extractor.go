package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/tordrt/lala/internal/schema"
)

// SQLiteExtractor reads tables, columns and rows from SQLite
type SQLiteExtractor struct {
	client *SQLClient
}

// NewSQLiteExtractor creates a new SQLite source
func NewSQLiteExtractor(client *SQLClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// Close closes the underlying connection
func (e *SQLiteExtractor) Close() error {
	return e.client.Close()
}

// ListTables returns every user table in the database
func (e *SQLiteExtractor) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

// ListColumns returns the columns of a table in declaration order
func (e *SQLiteExtractor) ListColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLite(tableName))

	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	var pkColumns []string

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}

		col := schema.Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0,
		}

		if pk > 0 {
			pkColumns = append(pkColumns, name)
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	uniqueColumns, err := e.uniqueColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}

	// A single-column primary key is unique as well
	if len(pkColumns) == 1 {
		uniqueColumns[pkColumns[0]] = true
	}
	for i := range columns {
		columns[i].IsUnique = uniqueColumns[columns[i].Name]
	}

	return columns, nil
}

// uniqueColumns returns the columns covered by a single-column unique index
func (e *SQLiteExtractor) uniqueColumns(ctx context.Context, tableName string) (map[string]bool, error) {
	query := fmt.Sprintf("PRAGMA index_list(%s)", quoteSQLite(tableName))
	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var uniqueIndexes []string
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int

		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if unique == 1 {
			uniqueIndexes = append(uniqueIndexes, name)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	unique := make(map[string]bool)
	for _, name := range uniqueIndexes {
		indexColumns, err := e.indexColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(indexColumns) == 1 {
			unique[indexColumns[0]] = true
		}
	}

	return unique, nil
}

func (e *SQLiteExtractor) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA index_info(%s)", quoteSQLite(indexName))
	rows, err := e.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString

		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}

// FetchRowsByIDs returns the requested columns of every row whose idColumn is in ids.
// With no columns requested, all columns are returned.
func (e *SQLiteExtractor) FetchRowsByIDs(ctx context.Context, table, idColumn string, ids []int64, columns []string) ([]schema.Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	columns, err := selectColumns(ctx, e, table, columns)
	if err != nil {
		return nil, err
	}
	selected := strings.Join(lo.Map(columns, func(c string, _ int) string { return quoteSQLite(c) }), ", ")

	rows, err := fetchSQLRows(ctx, e.client.GetDB(), ids, func(placeholders string) string {
		return fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
			selected, quoteSQLite(table), quoteSQLite(idColumn), placeholders)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return rows, nil
}

func quoteSQLite(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
