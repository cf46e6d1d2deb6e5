package pseudonym

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
)

const idMarker = "id"

// resolver decides which table a column references, given the tables that
// have an identity map.
type resolver struct {
	tables       map[string]bool
	folded       map[string]string // lowercase name -> table
	bySuffix     []string          // longest first
	pluralTables bool
}

func newResolver(tables []string, pluralTables bool) *resolver {
	r := &resolver{
		tables:       make(map[string]bool, len(tables)),
		folded:       make(map[string]string, len(tables)),
		bySuffix:     append([]string(nil), tables...),
		pluralTables: pluralTables,
	}
	sort.Strings(r.bySuffix)
	sort.SliceStable(r.bySuffix, func(i, j int) bool {
		return len(r.bySuffix[i]) > len(r.bySuffix[j])
	})
	for _, t := range r.bySuffix {
		r.tables[t] = true
		if _, ok := r.folded[strings.ToLower(t)]; !ok {
			r.folded[strings.ToLower(t)] = t
		}
	}
	return r
}

// referencedTable returns the table a foreign-key-shaped column points to.
// The candidate is the text before the first "id", found case-insensitively.
// A table named exactly like the candidate wins, then one that differs only in
// case; otherwise the longest known table the candidate ends with is used, so
// "relateduserid" resolves to "user".
func (r *resolver) referencedTable(column string) (string, bool) {
	idx := indexFold(column, idMarker)
	if idx <= 0 {
		return "", false
	}
	candidate := column[:idx]

	if table, ok := r.lookup(candidate); ok {
		return table, true
	}
	lower := strings.ToLower(candidate)
	for _, t := range r.bySuffix {
		if t != "" && strings.HasSuffix(lower, strings.ToLower(t)) {
			return t, true
		}
	}
	if r.pluralTables {
		if table, ok := r.lookup(inflection.Plural(strings.TrimSuffix(candidate, "_"))); ok {
			return table, true
		}
	}
	return "", false
}

func (r *resolver) lookup(name string) (string, bool) {
	if r.tables[name] {
		return name, true
	}
	table, ok := r.folded[strings.ToLower(name)]
	return table, ok
}

// indexFold is strings.Index ignoring ASCII case.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
