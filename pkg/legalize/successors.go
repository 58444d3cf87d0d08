package legalize

import (
	"slices"

	"github.com/mhersch/flowlevel/pkg/prog"
)

// Carrier identifies the entity a dataflow edge transports: a buffer for
// memory edges between loops, or a shaped value for direct uses. Exactly
// one field is set.
type Carrier struct {
	Buffer string
	Value  string
}

// Name returns the carrier's buffer or value name.
func (c Carrier) Name() string {
	if c.Buffer != "" {
		return c.Buffer
	}
	return c.Value
}

// Successor is one outgoing dataflow edge: the carrier and the consuming
// node.
type Successor struct {
	Carrier Carrier
	Node    prog.ID
}

// SuccessorsMap maps each node to its outgoing edges in discovery order.
// Nodes without outgoing edges are absent.
type SuccessorsMap map[prog.ID][]Successor

// Successors builds the producer→consumer edge map for a region's
// top-level nodes.
//
// Memory edges connect a loop that stores a buffer to every loop that
// loads it, excluding the loop itself and loops that also store the same
// buffer (a loop reading and writing one buffer is an accumulation
// pattern, not a pipeline edge). Value edges connect a dataflow node to
// every dataflow node consuming one of its shaped results. Scalar results
// and non-dataflow consumers contribute no edges.
func Successors(r *prog.Region) SuccessorsMap {
	// Per-buffer access sets, in program then declaration order.
	stores := make(map[string][]prog.ID)
	loads := make(map[string][]prog.ID)
	for _, id := range r.Order() {
		n := r.Node(id)
		if n.Kind != prog.KindLoop && n.Kind != prog.KindCopy {
			continue
		}
		for _, b := range n.Stores {
			stores[b] = appendUnique(stores[b], id)
		}
		for _, b := range n.Loads {
			loads[b] = appendUnique(loads[b], id)
		}
	}

	// Per-value consumer lists.
	users := make(map[string][]prog.ID)
	for _, id := range r.Order() {
		for _, v := range r.Node(id).Args {
			users[v] = appendUnique(users[v], id)
		}
	}

	m := make(SuccessorsMap)
	for _, id := range r.Order() {
		n := r.Node(id)
		switch {
		case n.Kind == prog.KindLoop || (n.Kind == prog.KindCopy && len(n.Stores) > 0):
			for _, buf := range n.Stores {
				for _, succ := range loads[buf] {
					if succ == id || slices.Contains(stores[buf], succ) {
						continue
					}
					m[id] = append(m[id], Successor{Carrier: Carrier{Buffer: buf}, Node: succ})
				}
			}
		case n.Kind.IsDataflow():
			for _, res := range n.Results {
				if v := r.Value(res); v == nil || !v.Shaped {
					continue
				}
				for _, succ := range users[res] {
					if succ == id || !r.Node(succ).Kind.IsDataflow() {
						continue
					}
					m[id] = append(m[id], Successor{Carrier: Carrier{Value: res}, Node: succ})
				}
			}
		}
	}
	return m
}

func appendUnique(ids []prog.ID, id prog.ID) []prog.ID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
