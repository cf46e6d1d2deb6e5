package pseudonym

import (
	"fmt"
	"strings"

	"github.com/tordrt/lala/internal/apperrors"
	"github.com/tordrt/lala/internal/schema"
)

// MinAnonymitySet is the smallest number of distinct subjects a user table
// or user reference may contain. Fewer subjects can be told apart by
// elimination.
const MinAnonymitySet = 3

const userMarker = "user"

// CheckAnonymity must pass before rows of table are pseudonymized. tables
// lists every table that will get an identity map; columns resolving to one
// of them whose name contains "user" count as user references.
//
// A table whose name contains "user" needs MinAnonymitySet distinct ids. A
// user reference column needs MinAnonymitySet distinct values unless all of
// its values are empty.
func (p *Pseudonymizer) CheckAnonymity(table string, rows []schema.Row, tables []string) error {
	if strings.Contains(strings.ToLower(table), userMarker) {
		if n := distinct(rows, PrimaryKeyColumn); n < MinAnonymitySet {
			return fmt.Errorf("%w: table %s has %d distinct users, at least %d are needed",
				apperrors.ErrInsufficientAnonymitySet, table, n, MinAnonymitySet)
		}
	}

	res := newResolver(tables, p.pluralTables)
	for _, column := range columnNames(rows) {
		if column == PrimaryKeyColumn || !strings.Contains(strings.ToLower(column), idMarker) {
			continue
		}
		target, ok := res.referencedTable(column)
		if !ok || !strings.Contains(strings.ToLower(target), userMarker) {
			continue
		}
		if n := distinct(rows, column); n > 0 && n < MinAnonymitySet {
			return fmt.Errorf("%w: %s.%s references %d distinct users, at least %d are needed",
				apperrors.ErrInsufficientAnonymitySet, table, column, n, MinAnonymitySet)
		}
	}
	return nil
}

func distinct(rows []schema.Row, column string) int {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		v := row[column]
		if schema.IsEmptyValue(v) {
			continue
		}
		seen[schema.FormatValue(v)] = struct{}{}
	}
	return len(seen)
}

func columnNames(rows []schema.Row) []string {
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		for column := range row {
			if !seen[column] {
				seen[column] = true
				names = append(names, column)
			}
		}
	}
	return names
}
