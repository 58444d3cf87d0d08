package legalize

import "github.com/mhersch/flowlevel/pkg/prog"

// Options configures a legalization run. The two knobs are independent.
type Options struct {
	// InsertCopy selects the bypass strategy: true synthesizes explicit
	// buffering chains so every edge connects adjacent levels; false
	// records bypasses as merge spans applied during compaction.
	InsertCopy bool

	// MinGran is the minimum number of source levels merged into one
	// output level during compaction. Must be positive; 1 leaves levels
	// as fine as correctness allows. Ignored when InsertCopy is true and
	// MinGran is 1.
	MinGran int
}

// DefaultOptions returns the options used when none are given: copy
// insertion with the finest granularity.
func DefaultOptions() Options {
	return Options{InsertCopy: true, MinGran: 1}
}

// Run legalizes a region in place: builds the dataflow edge map, assigns
// ALAP levels, resolves bypass paths per opts, reorders each level into a
// contiguous run, compacts level numbers, and sets the region's
// legalized flag.
//
// On failure the region is partially annotated and should be discarded;
// the returned error is an [*Error] naming the offending node. The run
// mutates only the given region, so independent regions may be legalized
// concurrently.
func Run(r *prog.Region, opts Options) error {
	if opts.MinGran < 1 {
		opts.MinGran = 1
	}

	succs := Successors(r)
	if err := assignLevels(r, succs); err != nil {
		return err
	}

	bypasses := findBypasses(r, succs)
	spans := make(mergeSpans)
	if opts.InsertCopy {
		if err := insertCopies(r, bypasses); err != nil {
			return err
		}
	} else {
		spans = recordSpans(bypasses)
	}

	groups := levelGroups(r)
	if err := reorder(r, groups); err != nil {
		return err
	}

	// Copy insertion at the finest granularity already yields maximally
	// fine, adjacent levels; renumbering would be the identity.
	if opts.MinGran != 1 || !opts.InsertCopy {
		compact(r, groups, spans, opts.MinGran)
	}

	r.SetFlag(FlagLegalized, true)
	return nil
}
