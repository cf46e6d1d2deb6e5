package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/tordrt/lala/internal/schema"
)

// Extractor reads tables, columns and rows from PostgreSQL
type Extractor struct {
	client *PostgresClient
	schema string
}

// NewExtractor creates a new PostgreSQL source
func NewExtractor(client *PostgresClient, schemaName string) *Extractor {
	return &Extractor{
		client: client,
		schema: schemaName,
	}
}

// Close closes the underlying connection
func (e *Extractor) Close() error {
	e.client.Close()
	return nil
}

// ListTables returns every base table in the schema
func (e *Extractor) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.client.GetPool().Query(ctx, query, e.schema)
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

// postgresColumnType returns the type name recorded on a column. Enum and
// composite columns report USER-DEFINED as data_type, so udt_name is used.
func postgresColumnType(dataType, udtName string) string {
	if dataType == "USER-DEFINED" {
		return udtName
	}
	return dataType
}

// ListColumns returns the columns of a table in ordinal order
func (e *Extractor) ListColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			CASE WHEN EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.constraint_column_usage ccu
					ON tc.constraint_name = ccu.constraint_name
					AND tc.table_schema = ccu.table_schema
				WHERE tc.table_schema = $1
					AND tc.table_name = $2
					AND tc.constraint_type IN ('UNIQUE', 'PRIMARY KEY')
					AND ccu.column_name = c.column_name
			) THEN true ELSE false END as is_unique,
			c.udt_name
		FROM information_schema.columns c
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := e.client.GetPool().Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var col schema.Column
		var nullable string
		var dataType string
		var udtName string

		if err := rows.Scan(&col.Name, &dataType, &nullable, &col.IsUnique, &udtName); err != nil {
			return nil, err
		}

		col.Nullable = (nullable == "YES")
		col.Type = postgresColumnType(dataType, udtName)

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// FetchRowsByIDs returns the requested columns of every row whose idColumn is in ids.
// With no columns requested, all columns are returned.
func (e *Extractor) FetchRowsByIDs(ctx context.Context, table, idColumn string, ids []int64, columns []string) ([]schema.Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	columns, err := selectColumns(ctx, e, table, columns)
	if err != nil {
		return nil, err
	}

	quoted := lo.Map(columns, func(c string, _ int) string { return pgx.Identifier{c}.Sanitize() })
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		strings.Join(quoted, ", "),
		pgx.Identifier{e.schema, table}.Sanitize(),
		pgx.Identifier{idColumn}.Sanitize())

	var result []schema.Row
	for _, chunk := range lo.Chunk(ids, fetchChunkSize) {
		rows, err := e.client.GetPool().Query(ctx, query, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, err)
		}

		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				rows.Close()
				return nil, err
			}

			row := make(schema.Row, len(values))
			for i, fd := range rows.FieldDescriptions() {
				row[fd.Name] = normalizeValue(values[i])
			}
			result = append(result, row)
		}
		rows.Close()

		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	return result, nil
}
