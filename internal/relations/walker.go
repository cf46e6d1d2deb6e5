// Package relations discovers the tables reachable from a set of root records
// through foreign-key-shaped columns.
//
// Foreign keys are recognized by name only: a column such as "courseid" is
// taken to reference the table "course" when that table exists. The host
// schema does not declare foreign key constraints, so there is nothing else
// to go on.
package relations

import (
	"context"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/tordrt/lala/internal/schema"
)

const (
	// idMarker is the substring that makes a column a foreign key candidate.
	idMarker = "id"

	// PrimaryKeyColumn is the id column every table is expected to have.
	PrimaryKeyColumn = "id"

	minColumnLength = 3
)

// SchemaIntrospector lists tables and their columns.
type SchemaIntrospector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, table string) ([]schema.Column, error)
}

// RowReader fetches the rows of a table whose idColumn is in ids.
type RowReader interface {
	FetchRowsByIDs(ctx context.Context, table, idColumn string, ids []int64, columns []string) ([]schema.Row, error)
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithPluralTables makes the walker fall back to the plural of a candidate
// table name ("user_id" -> "users") when the exact name does not exist.
func WithPluralTables() WalkerOption {
	return func(w *Walker) { w.pluralTables = true }
}

// Walker follows foreign-key-shaped columns one hop at a time.
type Walker struct {
	introspector SchemaIntrospector
	reader       RowReader
	logger       *zap.Logger
	pluralTables bool
}

// NewWalker creates a walker. If logger is nil, a no-op logger is used.
func NewWalker(introspector SchemaIntrospector, reader RowReader, logger *zap.Logger, opts ...WalkerOption) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Walker{
		introspector: introspector,
		reader:       reader,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Discover walks from rootTable, whose relevant rows are relevantIDs, and
// adds every table it reaches to accumulated. The first discovery of a table
// wins: a table already present in accumulated is neither updated nor
// walked again. A nil accumulated is seeded with the root table.
func (w *Walker) Discover(ctx context.Context, rootTable string, relevantIDs []int64, accumulated *Graph) (*Graph, error) {
	if accumulated == nil {
		accumulated = NewGraph(rootTable, relevantIDs)
	}

	tables, err := w.introspector.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
	}

	if err := w.walk(ctx, rootTable, relevantIDs, accumulated, known); err != nil {
		return nil, err
	}
	return accumulated, nil
}

func (w *Walker) walk(ctx context.Context, table string, ids []int64, acc *Graph, known map[string]bool) error {
	if len(ids) == 0 {
		return nil
	}

	columns, err := w.introspector.ListColumns(ctx, table)
	if err != nil {
		return fmt.Errorf("failed to list columns of %s: %w", table, err)
	}

	for _, col := range columns {
		if !col.IsInteger() {
			continue
		}
		target, ok := w.referencedTable(col.Name, known)
		if !ok || acc.Has(target) {
			continue
		}

		related, err := w.columnValues(ctx, table, col.Name, ids)
		if err != nil {
			return err
		}
		if len(related) == 0 {
			continue
		}

		if !acc.Add(target, related) {
			continue
		}
		w.logger.Debug("Discovered related table",
			zap.String("table", target),
			zap.String("via", table+"."+col.Name),
			zap.Int("ids", len(related)))

		if err := w.walk(ctx, target, acc.IDs(target), acc, known); err != nil {
			return err
		}
	}
	return nil
}

// referencedTable applies the naming rule: the column must be at least three
// characters long and contain "id"; the text before "id" names the table.
func (w *Walker) referencedTable(column string, known map[string]bool) (string, bool) {
	candidate, ok := CandidateTable(column)
	if !ok {
		return "", false
	}
	if known[candidate] {
		return candidate, true
	}
	if w.pluralTables {
		plural := inflection.Plural(strings.TrimSuffix(candidate, "_"))
		if plural != "" && known[plural] {
			return plural, true
		}
	}
	return "", false
}

// CandidateTable returns the text before the first "id" in column. ok is
// false for columns shorter than three characters, columns without "id" and
// columns that start with "id".
func CandidateTable(column string) (string, bool) {
	if len(column) < minColumnLength {
		return "", false
	}
	idx := strings.Index(column, idMarker)
	if idx <= 0 {
		return "", false
	}
	return column[:idx], true
}

func (w *Walker) columnValues(ctx context.Context, table, column string, ids []int64) ([]int64, error) {
	rows, err := w.reader.FetchRowsByIDs(ctx, table, PrimaryKeyColumn, ids, []string{column})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s.%s: %w", table, column, err)
	}

	values := make([]int64, 0, len(rows))
	for _, row := range rows {
		v := row[column]
		if schema.IsEmptyValue(v) {
			continue
		}
		id, err := schema.ToID(v)
		if err != nil {
			w.logger.Debug("Skipping non-numeric reference",
				zap.String("column", table+"."+column),
				zap.Any("value", v))
			continue
		}
		values = append(values, id)
	}
	return values, nil
}
