// Package graphview renders the dependency graph a database has
// accumulated as an ordered, batched view: the same topological
// structure a build driver already respects internally, exposed for
// diagnostics and for the "graph" CLI subcommand.
package graphview

import "sort"

// NodeID is a dense index assigned to every node name seen in an edge
// map, in sorted-name order.
type NodeID uint32

// NodeIndex maps node names to dense IDs and back.
type NodeIndex struct {
	NameToID map[string]NodeID
	IDToName []string
}

// BuildIndex collects every name mentioned as a key or as a dependency
// in edges and assigns each a stable ID in sorted order.
func BuildIndex(edges map[string][]string) NodeIndex {
	uniq := make(map[string]struct{}, len(edges))
	for from, deps := range edges {
		uniq[from] = struct{}{}
		for _, to := range deps {
			uniq[to] = struct{}{}
		}
	}

	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]NodeID, len(names))
	for i, name := range names {
		nameToID[name] = NodeID(i)
	}

	return NodeIndex{NameToID: nameToID, IDToName: names}
}

// Names translates ids back to their node names.
func (idx NodeIndex) Names(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[int(id)]
	}
	return out
}

// BatchNames translates a slice of ID batches back to name batches.
func (idx NodeIndex) BatchNames(batches [][]NodeID) [][]string {
	out := make([][]string, len(batches))
	for i, batch := range batches {
		out[i] = idx.Names(batch)
	}
	return out
}
