package db

import (
	"context"
	"strings"

	"github.com/tordrt/lala/internal/schema"
)

// prefixedSource shows the tables of a prefixed schema (Moodle's "mdl_user")
// under their logical names ("user"). Tables without the prefix are hidden.
type prefixedSource struct {
	Source
	prefix string
}

// WithTablePrefix wraps s so that table names are read and passed without
// prefix. An empty prefix returns s unchanged.
func WithTablePrefix(s Source, prefix string) Source {
	if prefix == "" {
		return s
	}
	return &prefixedSource{Source: s, prefix: prefix}
}

func (p *prefixedSource) ListTables(ctx context.Context) ([]string, error) {
	tables, err := p.Source.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	var logical []string
	for _, table := range tables {
		if name, ok := strings.CutPrefix(table, p.prefix); ok && name != "" {
			logical = append(logical, name)
		}
	}
	return logical, nil
}

func (p *prefixedSource) ListColumns(ctx context.Context, table string) ([]schema.Column, error) {
	return p.Source.ListColumns(ctx, p.prefix+table)
}

func (p *prefixedSource) FetchRowsByIDs(ctx context.Context, table, idColumn string, ids []int64, columns []string) ([]schema.Row, error) {
	return p.Source.FetchRowsByIDs(ctx, p.prefix+table, idColumn, ids, columns)
}
