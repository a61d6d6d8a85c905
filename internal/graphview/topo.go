package graphview

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// Topo is a batched topological order over dependency edges: Batches[0]
// holds the nodes no other node depends on, Batches[1] the nodes only
// Batches[0] depends on, and so on, so the last batch holds the leaves.
// Every node in a batch can be built in parallel once all later batches
// are built.
type Topo struct {
	Order   []NodeID
	Batches [][]NodeID
	Cyclic  bool
	Cycles  []NodeID
}

// ToposortKahn runs Kahn's algorithm over g. Ties within a batch are
// broken by NodeID so the result is deterministic across runs of the
// same graph.
func ToposortKahn(g Graph) *Topo {
	n := len(g.Edges)
	indeg := make([]int, len(g.Indeg))
	copy(indeg, g.Indeg)

	topo := &Topo{
		Order:   make([]NodeID, 0, n),
		Batches: make([][]NodeID, 0),
	}

	current := make([]NodeID, 0, n)
	for i := range n {
		if indeg[i] == 0 {
			id, err := safecast.Conv[NodeID](i)
			if err != nil {
				panic(fmt.Errorf("graphview: node id overflow: %w", err))
			}
			current = append(current, id)
		}
	}
	slices.Sort(current)

	visited := 0
	for len(current) > 0 {
		batch := make([]NodeID, len(current))
		copy(batch, current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]NodeID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			visited++
			for _, to := range g.Edges[int(id)] {
				indeg[int(to)]--
				if indeg[int(to)] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if visited != n {
		topo.Cyclic = true
		for i := range n {
			if indeg[i] > 0 {
				id, err := safecast.Conv[NodeID](i)
				if err != nil {
					panic(fmt.Errorf("graphview: node id overflow: %w", err))
				}
				topo.Cycles = append(topo.Cycles, id)
			}
		}
		slices.Sort(topo.Cycles)
	}

	return topo
}
