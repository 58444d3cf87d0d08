package legalize

import (
	"testing"

	"github.com/mhersch/flowlevel/pkg/prog"
)

// bypassRegion builds a chain a→b→c plus a direct a→c edge, giving
// level(a)=3, level(c)=1 and a bypass spanning levels 3→1.
func bypassRegion(t *testing.T) (*prog.Region, prog.ID, prog.ID, prog.ID) {
	t.Helper()
	r := prog.New("f")
	for _, v := range []string{"v1", "v2"} {
		if _, err := r.AddValue(v, true); err != nil {
			t.Fatalf("AddValue(%s) error = %v", v, err)
		}
	}
	a, _ := r.AddNode(prog.Node{Name: "a", Kind: prog.KindCompute, Results: []string{"v1"}})
	b, _ := r.AddNode(prog.Node{Name: "b", Kind: prog.KindCompute, Args: []string{"v1"}, Results: []string{"v2"}})
	c, _ := r.AddNode(prog.Node{Name: "c", Kind: prog.KindCompute, Args: []string{"v2", "v1"}})
	return r, a, b, c
}

func TestFindBypasses(t *testing.T) {
	r, a, _, c := bypassRegion(t)
	succs := Successors(r)
	if err := assignLevels(r, succs); err != nil {
		t.Fatalf("assignLevels() error = %v", err)
	}

	got := findBypasses(r, succs)

	if len(got) != 1 {
		t.Fatalf("findBypasses() = %v, want exactly one", got)
	}
	bp := got[0]
	if bp.producer != a || bp.successor != c || bp.from != 3 || bp.to != 1 {
		t.Errorf("bypass = %+v, want a→c spanning 3→1", bp)
	}
}

func TestInsertCopies_ValueCarrier(t *testing.T) {
	r, a, _, c := bypassRegion(t)
	succs := Successors(r)
	if err := assignLevels(r, succs); err != nil {
		t.Fatalf("assignLevels() error = %v", err)
	}

	if err := insertCopies(r, findBypasses(r, succs)); err != nil {
		t.Fatalf("insertCopies() error = %v", err)
	}

	// One forwarding node fills the single intermediate level.
	if r.NodeCount() != 4 {
		t.Fatalf("NodeCount() = %d, want 4", r.NodeCount())
	}
	fwd := prog.ID(3)
	n := r.Node(fwd)
	if n.Kind != prog.KindCopy || n.Origin != "v1" {
		t.Fatalf("synthesized node = %+v, want copy of v1", n)
	}
	if got := level(t, r, fwd); got != 2 {
		t.Errorf("level(copy) = %d, want 2", got)
	}
	if len(n.Args) != 1 || n.Args[0] != "v1" {
		t.Errorf("copy args = %v, want [v1]", n.Args)
	}

	// The successor now reads the chain's output; b's use is untouched.
	if got := r.Node(c).Args[1]; got != n.Results[0] {
		t.Errorf("c reads %q, want %q", got, n.Results[0])
	}
	if got := r.Node(prog.ID(1)).Args[0]; got != "v1" {
		t.Errorf("b reads %q, want original v1", got)
	}
	// Producer untouched.
	if got := r.Node(a).Results[0]; got != "v1" {
		t.Errorf("a produces %q, want v1", got)
	}
}

func TestInsertCopies_AdjacencyInvariant(t *testing.T) {
	// After copy insertion every edge in the expanded graph connects
	// nodes exactly one level apart.
	r, _, _, _ := bypassRegion(t)
	succs := Successors(r)
	if err := assignLevels(r, succs); err != nil {
		t.Fatalf("assignLevels() error = %v", err)
	}
	if err := insertCopies(r, findBypasses(r, succs)); err != nil {
		t.Fatalf("insertCopies() error = %v", err)
	}

	for id, edges := range Successors(r) {
		from := level(t, r, id)
		for _, s := range edges {
			if to := level(t, r, s.Node); from != to+1 {
				t.Errorf("edge %s→%s spans %d→%d, want adjacent",
					r.Node(id).Name, r.Node(s.Node).Name, from, to)
			}
		}
	}
}

func TestInsertCopies_BufferCarrier(t *testing.T) {
	// l1 stores m read by l2 (adjacent) and l3 (bypass via chain of two
	// intermediate levels).
	r := prog.New("f")
	r.AddBuffer("m")
	r.AddBuffer("m2")
	r.AddBuffer("m3")
	r.AddNode(prog.Node{Name: "l1", Kind: prog.KindLoop, Stores: []string{"m"}})
	r.AddNode(prog.Node{Name: "l2", Kind: prog.KindLoop, Loads: []string{"m"}, Stores: []string{"m2"}})
	r.AddNode(prog.Node{Name: "l3", Kind: prog.KindLoop, Loads: []string{"m2"}, Stores: []string{"m3"}})
	l4, _ := r.AddNode(prog.Node{Name: "l4", Kind: prog.KindLoop, Loads: []string{"m3", "m"}})

	succs := Successors(r)
	if err := assignLevels(r, succs); err != nil {
		t.Fatalf("assignLevels() error = %v", err)
	}
	if err := insertCopies(r, findBypasses(r, succs)); err != nil {
		t.Fatalf("insertCopies() error = %v", err)
	}

	// l1 is at level 4, l4 at level 1: two chain links at levels 3 and 2,
	// each an alloc plus a copy loop.
	var copies []prog.ID
	for _, id := range r.Order() {
		n := r.Node(id)
		if n.Kind == prog.KindCopy && n.Origin == "m" {
			copies = append(copies, id)
		}
	}
	if len(copies) != 2 {
		t.Fatalf("synthesized %d copies of m, want 2", len(copies))
	}
	if got := level(t, r, copies[0]); got != 3 {
		t.Errorf("level(first link) = %d, want 3", got)
	}
	if got := level(t, r, copies[1]); got != 2 {
		t.Errorf("level(second link) = %d, want 2", got)
	}

	// Links chain: first reads m, second reads the first's output, and l4
	// now loads the second's output instead of m.
	first, second := r.Node(copies[0]), r.Node(copies[1])
	if first.Loads[0] != "m" {
		t.Errorf("first link loads %q, want m", first.Loads[0])
	}
	if second.Loads[0] != first.Stores[0] {
		t.Errorf("second link loads %q, want %q", second.Loads[0], first.Stores[0])
	}
	if r.Node(l4).LoadsBuffer("m") {
		t.Errorf("l4 still loads m after redirection: %v", r.Node(l4).Loads)
	}
	if !r.Node(l4).LoadsBuffer(second.Stores[0]) {
		t.Errorf("l4 loads %v, want %q", r.Node(l4).Loads, second.Stores[0])
	}

	// Each link comes with an allocation for its intermediate buffer.
	allocs := 0
	for _, id := range r.Order() {
		n := r.Node(id)
		if n.Kind == prog.KindAlloc && n.Origin == "m" {
			allocs++
			if _, ok := r.IntAttr(id, AttrLevel); ok {
				t.Errorf("allocation %q received a level", n.Name)
			}
		}
	}
	if allocs != 2 {
		t.Errorf("synthesized %d allocations, want 2", allocs)
	}
}

func TestRecordSpans_LongestWins(t *testing.T) {
	spans := recordSpans([]bypass{
		{from: 3, to: 1},
		{from: 5, to: 1},
		{from: 4, to: 2},
	})

	if got := spans[1]; got != 5 {
		t.Errorf("spans[1] = %d, want 5", got)
	}
	if got := spans[2]; got != 4 {
		t.Errorf("spans[2] = %d, want 4", got)
	}
}
