package graphview

import "slices"

// Graph is an adjacency-list view of a dependency graph, dense-indexed
// against a NodeIndex.
type Graph struct {
	Edges [][]NodeID // Edges[from] = sorted list of dependencies
	Indeg []int      // in-degree, for Kahn's algorithm
}

// BuildGraph turns a name-keyed adjacency map into a dense Graph. Edges
// naming a node absent from idx are ignored — the caller is expected to
// have derived idx from the same edges map via BuildIndex.
func BuildGraph(idx NodeIndex, edges map[string][]string) Graph {
	n := len(idx.IDToName)
	g := Graph{
		Edges: make([][]NodeID, n),
		Indeg: make([]int, n),
	}

	for from, deps := range edges {
		fromID, ok := idx.NameToID[from]
		if !ok {
			continue
		}
		seen := make(map[NodeID]struct{}, len(deps))
		for _, to := range deps {
			toID, ok := idx.NameToID[to]
			if !ok || toID == fromID {
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}
			g.Edges[int(fromID)] = append(g.Edges[int(fromID)], toID)
			g.Indeg[int(toID)]++
		}
		if len(g.Edges[int(fromID)]) > 1 {
			slices.Sort(g.Edges[int(fromID)])
		}
	}

	return g
}
