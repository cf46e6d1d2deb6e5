package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/tordrt/lala/internal/schema"
)

// MySQLExtractor reads tables, columns and rows from MySQL
type MySQLExtractor struct {
	client     *SQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL source
func NewMySQLExtractor(client *SQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// Close closes the underlying connection
func (e *MySQLExtractor) Close() error {
	return e.client.Close()
}

// ListTables returns every base table in the schema
func (e *MySQLExtractor) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// ListColumns returns the columns of a table in ordinal order
func (e *MySQLExtractor) ListColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_key IN ('PRI', 'UNI') AS is_unique
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.client.GetDB().QueryContext(ctx, query, e.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable string

		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.IsUnique); err != nil {
			return nil, err
		}

		col.Nullable = (nullable == "YES")
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// FetchRowsByIDs returns the requested columns of every row whose idColumn is in ids.
// With no columns requested, all columns are returned.
func (e *MySQLExtractor) FetchRowsByIDs(ctx context.Context, table, idColumn string, ids []int64, columns []string) ([]schema.Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	columns, err := selectColumns(ctx, e, table, columns)
	if err != nil {
		return nil, err
	}
	selected := strings.Join(lo.Map(columns, func(c string, _ int) string { return quoteMySQL(c) }), ", ")

	rows, err := fetchSQLRows(ctx, e.client.GetDB(), ids, func(placeholders string) string {
		return fmt.Sprintf("SELECT %s FROM %s.%s WHERE %s IN (%s)",
			selected, quoteMySQL(e.schemaName), quoteMySQL(table), quoteMySQL(idColumn), placeholders)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return rows, nil
}

func quoteMySQL(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}
