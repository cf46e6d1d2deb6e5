package relations

import "github.com/samber/lo"

// Graph maps each discovered table to the ids relevant to the audit.
// Tables keep their discovery order.
type Graph struct {
	tables []string
	ids    map[string][]int64
}

// NewGraph seeds a graph with the root table and its ids.
func NewGraph(rootTable string, ids []int64) *Graph {
	g := &Graph{ids: make(map[string][]int64)}
	g.Add(rootTable, ids)
	return g
}

// Add records ids for table unless the table was already discovered. It
// reports whether the table was added.
func (g *Graph) Add(table string, ids []int64) bool {
	if g.ids == nil {
		g.ids = make(map[string][]int64)
	}
	if _, ok := g.ids[table]; ok {
		return false
	}
	g.tables = append(g.tables, table)
	g.ids[table] = lo.Uniq(ids)
	return true
}

// Has reports whether table was discovered.
func (g *Graph) Has(table string) bool {
	_, ok := g.ids[table]
	return ok
}

// IDs returns the relevant ids of table.
func (g *Graph) IDs(table string) []int64 {
	return append([]int64(nil), g.ids[table]...)
}

// Tables returns the discovered tables in discovery order.
func (g *Graph) Tables() []string {
	return append([]string(nil), g.tables...)
}

// Len returns the number of discovered tables.
func (g *Graph) Len() int {
	return len(g.tables)
}
