package legalize

import (
	"errors"
	"testing"

	"github.com/mhersch/flowlevel/pkg/prog"
)

func TestRun_InsertCopy(t *testing.T) {
	r, _, _, _ := bypassRegion(t)

	if err := Run(r, Options{InsertCopy: true, MinGran: 1}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !r.Flag(FlagLegalized) {
		t.Error("region not flagged legalized")
	}
	// One forwarding node was synthesized and every edge is adjacent.
	if r.NodeCount() != 4 {
		t.Errorf("NodeCount() = %d, want 4", r.NodeCount())
	}
	for id, edges := range Successors(r) {
		from, _ := r.IntAttr(id, AttrLevel)
		for _, s := range edges {
			to, _ := r.IntAttr(s.Node, AttrLevel)
			if from != to+1 {
				t.Errorf("edge %s→%s spans %d→%d, want adjacent",
					r.Node(id).Name, r.Node(s.Node).Name, from, to)
			}
		}
	}
}

func TestRun_MergeMode(t *testing.T) {
	// Scenario: producer at level 3 bypasses to a consumer at level 1
	// with InsertCopy off. No nodes are created; compaction folds levels
	// 1..3 into one output level.
	r, a, b, c := bypassRegion(t)

	if err := Run(r, Options{InsertCopy: false, MinGran: 1}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if r.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3 (no synthesis in merge mode)", r.NodeCount())
	}
	for _, id := range []prog.ID{a, b, c} {
		if got := level(t, r, id); got != 1 {
			t.Errorf("level(%s) = %d, want 1 (span absorbs levels up to 3)", r.Node(id).Name, got)
		}
	}
	if !r.Flag(FlagLegalized) {
		t.Error("region not flagged legalized")
	}
}

func TestRun_DenseLevels(t *testing.T) {
	r := chain(t, 5)
	r.ClearIntAttr(AttrLevel)

	if err := Run(r, Options{InsertCopy: false, MinGran: 2}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seen := make(map[int64]bool)
	var max int64
	for _, id := range r.Order() {
		l, ok := r.IntAttr(id, AttrLevel)
		if !ok {
			t.Fatalf("node %q unleveled", r.Node(id).Name)
		}
		if l < 1 {
			t.Errorf("level(%s) = %d, want >= 1", r.Node(id).Name, l)
		}
		seen[l] = true
		if l > max {
			max = l
		}
	}
	for l := int64(1); l <= max; l++ {
		if !seen[l] {
			t.Errorf("level %d unused, want dense numbering", l)
		}
	}
}

func TestRun_DefaultsMinGran(t *testing.T) {
	r := chain(t, 3)
	r.ClearIntAttr(AttrLevel)

	if err := Run(r, Options{InsertCopy: true}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !r.Flag(FlagLegalized) {
		t.Error("region not flagged legalized")
	}
}

func TestRun_FailurePropagates(t *testing.T) {
	r := prog.New("f")
	r.AddBuffer("m")
	r.AddNode(prog.Node{Name: "early", Kind: prog.KindLoop, Loads: []string{"m"}})
	r.AddNode(prog.Node{Name: "late", Kind: prog.KindLoop, Stores: []string{"m"}})

	err := Run(r, DefaultOptions())

	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("Run() error = %v, want *Error", err)
	}
	if r.Flag(FlagLegalized) {
		t.Error("failed region flagged legalized")
	}
}

func TestRun_IndependentRegionsConcurrently(t *testing.T) {
	regions := make([]*prog.Region, 8)
	for i := range regions {
		regions[i] = chain(t, 6)
		regions[i].ClearIntAttr(AttrLevel)
	}

	done := make(chan error, len(regions))
	for _, r := range regions {
		go func(r *prog.Region) {
			done <- Run(r, Options{InsertCopy: true, MinGran: 1})
		}(r)
	}
	for range regions {
		if err := <-done; err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}
	for _, r := range regions {
		if !r.Flag(FlagLegalized) {
			t.Error("region not flagged legalized")
		}
	}
}
