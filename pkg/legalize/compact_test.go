package legalize

import (
	"slices"
	"testing"

	"github.com/mhersch/flowlevel/pkg/prog"
)

// interleavedRegion builds four independent value chains arranged so
// level groups are interleaved in program order.
func interleavedRegion(t *testing.T) *prog.Region {
	t.Helper()
	r := prog.New("f")
	r.AddValue("x", true)
	r.AddValue("y", true)
	r.AddNode(prog.Node{Name: "p1", Kind: prog.KindCompute, Results: []string{"x"}})
	r.AddNode(prog.Node{Name: "p2", Kind: prog.KindCompute, Args: []string{"x"}})
	r.AddNode(prog.Node{Name: "q1", Kind: prog.KindCompute, Results: []string{"y"}})
	r.AddNode(prog.Node{Name: "q2", Kind: prog.KindCompute, Args: []string{"y"}})
	if err := assignLevels(r, Successors(r)); err != nil {
		t.Fatalf("assignLevels() error = %v", err)
	}
	return r
}

func names(r *prog.Region) []string {
	out := make([]string, 0, len(r.Order()))
	for _, id := range r.Order() {
		out = append(out, r.Node(id).Name)
	}
	return out
}

func TestReorder_ContiguousRuns(t *testing.T) {
	r := interleavedRegion(t)

	if err := reorder(r, levelGroups(r)); err != nil {
		t.Fatalf("reorder() error = %v", err)
	}

	// Producers (level 2) group before q2, consumers (level 1) before it;
	// relative order within each level is preserved.
	want := []string{"p1", "q1", "p2", "q2"}
	if got := names(r); !slices.Equal(got, want) {
		t.Errorf("order after reorder = %v, want %v", got, want)
	}
}

func TestReorder_Idempotent(t *testing.T) {
	r := interleavedRegion(t)
	if err := reorder(r, levelGroups(r)); err != nil {
		t.Fatalf("reorder() error = %v", err)
	}
	first := names(r)

	if err := reorder(r, levelGroups(r)); err != nil {
		t.Fatalf("reorder() error = %v", err)
	}

	if got := names(r); !slices.Equal(got, first) {
		t.Errorf("second reorder moved nodes: %v → %v", first, got)
	}
}

// chain builds a straight value chain of depth n, producing ALAP levels
// n..1 in program order.
func chain(t *testing.T, n int) *prog.Region {
	t.Helper()
	r := prog.New("f")
	prev := ""
	for i := 0; i < n; i++ {
		var res []string
		if i < n-1 {
			name := string(rune('a'+i)) + "_out"
			r.AddValue(name, true)
			res = []string{name}
		}
		node := prog.Node{Name: string(rune('a' + i)), Kind: prog.KindCompute, Results: res}
		if prev != "" {
			node.Args = []string{prev}
		}
		if _, err := r.AddNode(node); err != nil {
			t.Fatalf("AddNode error = %v", err)
		}
		if len(res) > 0 {
			prev = res[0]
		}
	}
	if err := assignLevels(r, Successors(r)); err != nil {
		t.Fatalf("assignLevels() error = %v", err)
	}
	return r
}

func TestCompact_Granularity(t *testing.T) {
	// Six levels at granularity 2 collapse into three output levels of
	// two consecutive source levels each.
	r := chain(t, 6)
	groups := levelGroups(r)

	compact(r, groups, mergeSpans{}, 2)

	wantRuns := map[int64]int64{1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3}
	for old, want := range wantRuns {
		id := groups[old][0]
		if got := level(t, r, id); got != want {
			t.Errorf("source level %d → %d, want %d", old, got, want)
		}
	}
}

func TestCompact_Monotonicity(t *testing.T) {
	// For any granularity, merged levels partition the source levels into
	// consecutive runs of size >= min(G, remaining).
	for g := 1; g <= 5; g++ {
		r := chain(t, 7)
		groups := levelGroups(r)

		compact(r, groups, mergeSpans{}, g)

		runs := make(map[int64]int64) // output level -> run size
		prev := int64(0)
		for old := int64(1); old <= 7; old++ {
			out := level(t, r, groups[old][0])
			if out < prev {
				t.Fatalf("g=%d: output levels not monotone at source level %d", g, old)
			}
			prev = out
			runs[out]++
		}
		var outs []int64
		for out := range runs {
			outs = append(outs, out)
		}
		slices.Sort(outs)
		for i, out := range outs {
			last := i == len(outs)-1
			if !last && runs[out] != int64(g) {
				t.Errorf("g=%d: run %d has size %d, want %d", g, out, runs[out], g)
			}
			if last && runs[out] > int64(g) {
				t.Errorf("g=%d: final run has size %d, want <= %d", g, runs[out], g)
			}
		}
	}
}

func TestCompact_SpanAbsorbsLevels(t *testing.T) {
	// A recorded span 1→3 forces levels 1..3 into one output level even
	// at granularity 1.
	r := chain(t, 4)
	groups := levelGroups(r)

	compact(r, groups, mergeSpans{1: 3}, 1)

	for old := int64(1); old <= 3; old++ {
		if got := level(t, r, groups[old][0]); got != 1 {
			t.Errorf("source level %d → %d, want 1", old, got)
		}
	}
	if got := level(t, r, groups[4][0]); got != 2 {
		t.Errorf("source level 4 → %d, want 2", got)
	}
}
