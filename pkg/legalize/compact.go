package legalize

import (
	"github.com/mhersch/flowlevel/pkg/prog"
)

// levelGroups collects leveled nodes by level, members in program order.
// ALAP levels are dense starting at 1, so levels 1..len(groups) all exist.
func levelGroups(r *prog.Region) map[int64][]prog.ID {
	groups := make(map[int64][]prog.ID)
	for _, id := range r.Order() {
		if level, ok := r.IntAttr(id, AttrLevel); ok {
			groups[level] = append(groups[level], id)
		}
	}
	return groups
}

// reorder moves every member of a level group to immediately precede the
// group's last member, producing one contiguous run per level. Moving the
// members in group order preserves their relative order, and dominance is
// safe: only same-level nodes are repositioned, and a level's edges point
// to adjacent lower levels only.
func reorder(r *prog.Region, groups map[int64][]prog.ID) error {
	maxLevel := int64(len(groups))
	for level := int64(1); level <= maxLevel; level++ {
		ops := groups[level]
		if len(ops) < 2 {
			continue
		}
		last := ops[len(ops)-1]
		for _, id := range ops[:len(ops)-1] {
			if err := r.MoveBefore(id, last); err != nil {
				return err
			}
		}
	}
	return nil
}

// compact renumbers levels so that at least minGran source levels merge
// into each output level, walking levels in increasing order with a
// running countdown. A recorded merge span targeting the current level
// resets the countdown to cover the whole span, so spans are honored in
// full even when that exceeds minGran. Output levels are dense and
// 1-based.
func compact(r *prog.Region, groups map[int64][]prog.ID, spans mergeSpans, minGran int) {
	newLevel := int64(1)
	toMerge := int64(minGran)
	maxLevel := int64(len(groups))
	for level := int64(1); level <= maxLevel; level++ {
		if end := spans[level]; end != 0 {
			toMerge = end - level
		} else {
			toMerge--
		}

		for _, id := range groups[level] {
			r.SetIntAttr(id, AttrLevel, newLevel)
		}

		if toMerge == 0 {
			toMerge = int64(minGran)
			newLevel++
		}
	}
}
