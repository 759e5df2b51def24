package consolidator

import "testing"

func TestUnionFindGroupsTransitiveMembers(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(1, 2)
	uf.union(3, 4)

	groups := uf.groups()
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	sizes := map[int]int{}
	for _, g := range groups {
		sizes[len(g)]++
	}
	if sizes[3] != 1 || sizes[2] != 1 {
		t.Errorf("unexpected group sizes: %v", groups)
	}
}

func TestUnionFindSkipsSingletons(t *testing.T) {
	uf := newUnionFind(3)
	uf.union(0, 1)
	groups := uf.groups()
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1 (singleton 2 excluded)", len(groups))
	}
}
