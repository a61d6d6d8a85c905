package graphview

import "testing"

func TestBuildIndexCollectsKeysAndDeps(t *testing.T) {
	idx := BuildIndex(map[string][]string{
		"core/main": {"lib/math", "lib/util"},
		"lib/util":  nil,
	})
	if len(idx.IDToName) != 3 {
		t.Fatalf("node count = %d, want 3", len(idx.IDToName))
	}
	want := []string{"core/main", "lib/math", "lib/util"}
	for i, name := range want {
		if idx.IDToName[i] != name {
			t.Fatalf("IDToName[%d] = %q, want %q", i, idx.IDToName[i], name)
		}
	}
}

func TestToposortKahnBatches(t *testing.T) {
	edges := map[string][]string{
		"b": {"c"},
		"a": nil,
		"c": nil,
	}
	idx := BuildIndex(edges)
	g := BuildGraph(idx, edges)
	topo := ToposortKahn(g)
	if topo.Cyclic {
		t.Fatalf("expected acyclic graph")
	}

	batches := idx.BatchNames(topo.Batches)
	want := [][]string{{"a", "b"}, {"c"}}
	if len(batches) != len(want) {
		t.Fatalf("batches = %v, want %v", batches, want)
	}
	for i := range want {
		if len(batches[i]) != len(want[i]) {
			t.Fatalf("batch %d = %v, want %v", i, batches[i], want[i])
		}
		for j := range want[i] {
			if batches[i][j] != want[i][j] {
				t.Fatalf("batch %d = %v, want %v", i, batches[i], want[i])
			}
		}
	}
}

func TestToposortKahnDetectsCycle(t *testing.T) {
	edges := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	idx := BuildIndex(edges)
	g := BuildGraph(idx, edges)
	topo := ToposortKahn(g)
	if !topo.Cyclic {
		t.Fatalf("expected cyclic graph")
	}
	if len(topo.Cycles) != 2 {
		t.Fatalf("cycles = %v, want 2 nodes", idx.Names(topo.Cycles))
	}
}
