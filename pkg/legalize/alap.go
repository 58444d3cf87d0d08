package legalize

import (
	"fmt"

	"github.com/mhersch/flowlevel/pkg/prog"
)

// AttrLevel is the per-node integer annotation carrying the assigned
// dataflow level. Present only on dataflow nodes after a successful run.
const AttrLevel = "dataflow_level"

// FlagLegalized is the region flag set once legalization completes.
const FlagLegalized = "dataflow"

// Error is a legalization failure attributed to a single node. The pass
// aborts on the first failure and leaves the region partially annotated;
// callers should discard it.
type Error struct {
	Node prog.ID
	Name string
}

func (e *Error) Error() string {
	return fmt.Sprintf("op %q has unexpected successor, legalization failed", e.Name)
}

// assignLevels walks the region's top-level nodes in reverse program order
// and records an ALAP level for every dataflow node: one more than the
// maximum level of its successors, or 1 for nodes with no outgoing edges.
//
// Edges always point from an earlier node to a later one, so the reverse
// walk sees every successor before its producer and a single pass
// suffices. A successor without a level means the input graph is cyclic or
// otherwise malformed; the walk stops there and reports the producer.
func assignLevels(r *prog.Region, succs SuccessorsMap) error {
	order := r.Order()
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		n := r.Node(id)
		if !n.Kind.IsDataflow() {
			continue
		}

		var level int64
		for _, s := range succs[id] {
			sl, ok := r.IntAttr(s.Node, AttrLevel)
			if !ok {
				return &Error{Node: id, Name: n.Name}
			}
			if sl > level {
				level = sl
			}
		}
		r.SetIntAttr(id, AttrLevel, level+1)
	}
	return nil
}
