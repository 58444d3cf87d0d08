package legalize

import (
	"fmt"

	"github.com/mhersch/flowlevel/pkg/prog"
)

// bypass is one edge whose endpoints sit more than one level apart: the
// carrier must survive across intermediate stage boundaries.
type bypass struct {
	producer  prog.ID
	successor prog.ID
	carrier   Carrier
	from, to  int64 // producer and successor levels
}

// findBypasses scans every edge of leveled nodes and collects those not
// connecting adjacent levels, in traversal order.
func findBypasses(r *prog.Region, succs SuccessorsMap) []bypass {
	var out []bypass
	order := r.Order()
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		level, ok := r.IntAttr(id, AttrLevel)
		if !ok {
			continue
		}
		for _, s := range succs[id] {
			sl, _ := r.IntAttr(s.Node, AttrLevel)
			if level == sl+1 {
				continue
			}
			out = append(out, bypass{
				producer:  id,
				successor: s.Node,
				carrier:   s.Carrier,
				from:      level,
				to:        sl,
			})
		}
	}
	return out
}

// insertCopies resolves every bypass by synthesizing a chain of buffering
// nodes, one per intermediate level from the producer's level minus one
// down to the successor's level plus one. The chain is planned per bypass
// and applied in one batch: nodes are created, positioned immediately
// before the successor, leveled, and only then is the final link wired
// into the successor's uses. Uses of the carrier outside the successor are
// untouched.
//
// A buffer carrier gets an allocation plus a copy loop per link; a value
// carrier gets a forwarding copy op.
func insertCopies(r *prog.Region, bypasses []bypass) error {
	for _, b := range bypasses {
		if err := insertChain(r, b); err != nil {
			return err
		}
	}
	return nil
}

func insertChain(r *prog.Region, b bypass) error {
	carrier := b.carrier.Name()
	prev := carrier
	for level := b.from - 1; level > b.to; level-- {
		var next string
		var link prog.Node

		if b.carrier.Buffer != "" {
			buf := r.NewTempBuffer(fmt.Sprintf("%s_buf_%d", carrier, level))
			next = buf.Name
			alloc := prog.Node{
				Name:   r.UniqueName(fmt.Sprintf("%s_alloc_%d", carrier, level)),
				Kind:   prog.KindAlloc,
				Origin: carrier,
			}
			allocID, err := r.AddNode(alloc)
			if err != nil {
				return err
			}
			if err := r.MoveBefore(allocID, b.successor); err != nil {
				return err
			}
			link = prog.Node{
				Name:   r.UniqueName(fmt.Sprintf("%s_copy_%d", carrier, level)),
				Kind:   prog.KindCopy,
				Loads:  []string{prev},
				Stores: []string{next},
				Origin: carrier,
			}
		} else {
			val := r.NewTempValue(fmt.Sprintf("%s_copy_%d", carrier, level))
			next = val.Name
			link = prog.Node{
				Name:    r.UniqueName(fmt.Sprintf("%s_fwd_%d", carrier, level)),
				Kind:    prog.KindCopy,
				Args:    []string{prev},
				Results: []string{next},
				Origin:  carrier,
			}
		}

		id, err := r.AddNode(link)
		if err != nil {
			return err
		}
		if err := r.MoveBefore(id, b.successor); err != nil {
			return err
		}
		r.SetIntAttr(id, AttrLevel, level)

		if level == b.to+1 {
			if b.carrier.Buffer != "" {
				r.RedirectBufferLoads(b.successor, carrier, next)
			} else {
				r.RedirectValueUses(b.successor, carrier, next)
			}
		}
		prev = next
	}
	return nil
}

// mergeSpans maps a target level to the highest producer level that must
// merge down into it. The longest span always wins over a shorter one
// recorded for the same target.
type mergeSpans map[int64]int64

// recordSpans folds the bypass list into merge intent without touching the
// region. Application happens during compaction.
func recordSpans(bypasses []bypass) mergeSpans {
	spans := make(mergeSpans)
	for _, b := range bypasses {
		if end, ok := spans[b.to]; !ok || b.from > end {
			spans[b.to] = b.from
		}
	}
	return spans
}
