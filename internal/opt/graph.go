package opt

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"refillplan/internal/geo"
	"refillplan/internal/model"
)

// Graph is the undirected proximity graph over the map locations. Two
// locations are adjacent iff their distance is strictly below the
// willingness-to-travel distance. Node IDs are indexes into the sorted
// location names, so traversal order does not depend on map iteration.
type Graph struct {
	names []string
	index map[string]int64
	locs  []model.Location
	g     *simple.UndirectedGraph
	edges int
}

// Component is a maximal connected set of location names, sorted.
type Component []string

// BuildGraph compares every unordered pair of locations, so it is quadratic
// in the number of locations.
func BuildGraph(locs map[string]model.Location, willingness float64) *Graph {
	names := make([]string, 0, len(locs))
	for k := range locs {
		names = append(names, k)
	}
	sort.Strings(names)

	g := &Graph{
		names: names,
		index: make(map[string]int64, len(names)),
		locs:  make([]model.Location, len(names)),
		g:     simple.NewUndirectedGraph(),
	}
	for i, n := range names {
		loc := locs[n]
		loc.Available = true
		g.index[n] = int64(i)
		g.locs[i] = loc
		g.g.AddNode(simple.Node(i))
	}
	for i := 0; i < len(names); i++ {
		a := g.locs[i]
		for j := i + 1; j < len(names); j++ {
			b := g.locs[j]
			if geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude) < willingness {
				g.g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
				g.edges++
			}
		}
	}
	return g
}

func (g *Graph) Len() int { return len(g.names) }

func (g *Graph) EdgeCount() int { return g.edges }

// Nodes returns the location names in sorted order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.names...)
}

func (g *Graph) Location(name string) (model.Location, bool) {
	i, ok := g.index[name]
	if !ok {
		return model.Location{}, false
	}
	return g.locs[i], true
}

// Neighbors returns the names adjacent to name, sorted.
func (g *Graph) Neighbors(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.sortedNames(graph.NodesOf(g.g.From(i)))
}

func (g *Graph) HasEdge(a, b string) bool {
	i, ok := g.index[a]
	if !ok {
		return false
	}
	j, ok := g.index[b]
	if !ok {
		return false
	}
	return g.g.HasEdgeBetween(i, j)
}

// Subset returns the locations of names keyed by name, the catalog an
// oracle call for one component is evaluated against.
func (g *Graph) Subset(names []string) map[string]model.Location {
	out := make(map[string]model.Location, len(names))
	for _, n := range names {
		if i, ok := g.index[n]; ok {
			out[n] = g.locs[i]
		}
	}
	return out
}

// Components returns the connected components of g. Each component is
// sorted; components are listed in order of their smallest member.
func (g *Graph) Components() []Component {
	var comps []Component
	for _, nodes := range topo.ConnectedComponents(g.g) {
		comps = append(comps, Component(g.sortedNames(nodes)))
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })
	return comps
}

func (g *Graph) sortedNames(nodes []graph.Node) []string {
	ids := make([]int, len(nodes))
	for k, n := range nodes {
		ids[k] = int(n.ID())
	}
	sort.Ints(ids)
	out := make([]string, len(ids))
	for k, id := range ids {
		out[k] = g.names[id]
	}
	return out
}
