// Package pseudonym rewrites the id columns of related tables through their
// identity maps, keeping references between tables intact.
package pseudonym

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tordrt/lala/internal/apperrors"
	"github.com/tordrt/lala/internal/idmap"
	"github.com/tordrt/lala/internal/schema"
)

// PrimaryKeyColumn is rewritten with the table's own identity map.
const PrimaryKeyColumn = "id"

// Option configures a Pseudonymizer.
type Option func(*Pseudonymizer)

// WithPluralTables lets "user_id" resolve to a "users" identity map.
func WithPluralTables() Option {
	return func(p *Pseudonymizer) { p.pluralTables = true }
}

// Pseudonymizer rewrites rows of one table at a time.
type Pseudonymizer struct {
	logger       *zap.Logger
	pluralTables bool
}

// New creates a Pseudonymizer. If logger is nil, a no-op logger is used.
func New(logger *zap.Logger, opts ...Option) *Pseudonymizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pseudonymizer{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pseudonymize returns new rows for table with every id and foreign key
// replaced by its pseudonym, in random order. idmaps must hold a map for
// table itself and for every table a foreign key may resolve to.
func (p *Pseudonymizer) Pseudonymize(rows []schema.Row, idmaps map[string]*idmap.Map, table string) ([]schema.Row, error) {
	own, ok := idmaps[table]
	if !ok {
		return nil, fmt.Errorf("%w: no identity map for table %s", apperrors.ErrConfiguration, table)
	}
	res := newResolver(lo.Keys(idmaps), p.pluralTables)

	out := make([]schema.Row, 0, len(rows))
	for _, row := range rows {
		rewritten := row.Clone()
		for column, value := range row {
			if schema.IsEmptyValue(value) {
				continue
			}

			m := own
			if column != PrimaryKeyColumn {
				if !strings.Contains(strings.ToLower(column), idMarker) {
					continue
				}
				target, ok := res.referencedTable(column)
				if !ok {
					continue
				}
				m = idmaps[target]
			}

			pseudonym, err := lookup(m, value)
			if err != nil {
				return nil, fmt.Errorf("failed to pseudonymize %s.%s: %w", table, column, err)
			}
			rewritten[column] = pseudonym
		}
		out = append(out, rewritten)
	}

	p.logger.Debug("Pseudonymized table",
		zap.String("table", table),
		zap.Int("rows", len(out)))

	return lo.Shuffle(out), nil
}

func lookup(m *idmap.Map, value any) (int64, error) {
	id, err := schema.ToID(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
	}
	return m.Pseudonym(id)
}
