package legalize

import (
	"testing"

	"github.com/mhersch/flowlevel/pkg/prog"
)

func TestSuccessors_MemoryEdges(t *testing.T) {
	// L1 stores M; L2 and L3 load M without storing it.
	r := prog.New("f")
	r.AddBuffer("m")
	l1, _ := r.AddNode(prog.Node{Name: "l1", Kind: prog.KindLoop, Stores: []string{"m"}})
	l2, _ := r.AddNode(prog.Node{Name: "l2", Kind: prog.KindLoop, Loads: []string{"m"}})
	l3, _ := r.AddNode(prog.Node{Name: "l3", Kind: prog.KindLoop, Loads: []string{"m"}})

	m := Successors(r)

	want := []Successor{
		{Carrier: Carrier{Buffer: "m"}, Node: l2},
		{Carrier: Carrier{Buffer: "m"}, Node: l3},
	}
	if len(m[l1]) != len(want) {
		t.Fatalf("edges(l1) = %v, want %v", m[l1], want)
	}
	for i, s := range m[l1] {
		if s != want[i] {
			t.Errorf("edges(l1)[%d] = %v, want %v", i, s, want[i])
		}
	}
	if len(m[l2]) != 0 || len(m[l3]) != 0 {
		t.Errorf("loads-only loops must have no outgoing edges, got %v / %v", m[l2], m[l3])
	}
}

func TestSuccessors_ReadWriteLoopExcluded(t *testing.T) {
	// L2 both loads and stores M: accumulation pattern, not a pipeline edge.
	r := prog.New("f")
	r.AddBuffer("m")
	l1, _ := r.AddNode(prog.Node{Name: "l1", Kind: prog.KindLoop, Stores: []string{"m"}})
	r.AddNode(prog.Node{Name: "l2", Kind: prog.KindLoop, Loads: []string{"m"}, Stores: []string{"m"}})

	m := Successors(r)

	if len(m[l1]) != 0 {
		t.Errorf("edges(l1) = %v, want none", m[l1])
	}
}

func TestSuccessors_NoSelfEdge(t *testing.T) {
	r := prog.New("f")
	r.AddBuffer("m")
	l1, _ := r.AddNode(prog.Node{Name: "l1", Kind: prog.KindLoop, Loads: []string{"m"}, Stores: []string{"m"}})

	m := Successors(r)

	for _, s := range m[l1] {
		if s.Node == l1 {
			t.Errorf("loop appears as its own successor: %v", s)
		}
	}
}

func TestSuccessors_ValueEdges(t *testing.T) {
	r := prog.New("f")
	r.AddValue("v", true)
	a, _ := r.AddNode(prog.Node{Name: "a", Kind: prog.KindCompute, Results: []string{"v"}})
	b, _ := r.AddNode(prog.Node{Name: "b", Kind: prog.KindCompute, Args: []string{"v"}})

	m := Successors(r)

	if len(m[a]) != 1 || m[a][0].Node != b || m[a][0].Carrier.Value != "v" {
		t.Errorf("edges(a) = %v, want one value edge to b", m[a])
	}
}

func TestSuccessors_ScalarResultExcluded(t *testing.T) {
	r := prog.New("f")
	r.AddValue("s", false)
	a, _ := r.AddNode(prog.Node{Name: "a", Kind: prog.KindCompute, Results: []string{"s"}})
	r.AddNode(prog.Node{Name: "b", Kind: prog.KindCompute, Args: []string{"s"}})

	if m := Successors(r); len(m[a]) != 0 {
		t.Errorf("scalar result produced edges: %v", m[a])
	}
}

func TestSuccessors_NonDataflowConsumerExcluded(t *testing.T) {
	r := prog.New("f")
	r.AddValue("v", true)
	a, _ := r.AddNode(prog.Node{Name: "a", Kind: prog.KindCompute, Results: []string{"v"}})
	r.AddNode(prog.Node{Name: "ret", Kind: prog.KindReturn, Args: []string{"v"}})

	if m := Successors(r); len(m[a]) != 0 {
		t.Errorf("return consumer produced edges: %v", m[a])
	}
}

func TestSuccessors_OneEdgePerCarrier(t *testing.T) {
	// Two buffers between the same pair of loops yield two edges.
	r := prog.New("f")
	r.AddBuffer("m1")
	r.AddBuffer("m2")
	l1, _ := r.AddNode(prog.Node{Name: "l1", Kind: prog.KindLoop, Stores: []string{"m1", "m2"}})
	r.AddNode(prog.Node{Name: "l2", Kind: prog.KindLoop, Loads: []string{"m1", "m2"}})

	if m := Successors(r); len(m[l1]) != 2 {
		t.Errorf("edges(l1) = %v, want one edge per buffer", m[l1])
	}
}
