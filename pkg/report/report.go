package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/mhersch/flowlevel/pkg/legalize"
	"github.com/mhersch/flowlevel/pkg/prog"
)

// =============================================================================
// Report - Legalization Result Serialization
// =============================================================================

// Report is the canonical serialization format for legalization results.
// Used for API responses, storage, caching, and cross-tool compatibility.
//
// The format is human-readable and designed for round-trip fidelity:
// legalize → export → re-import produces an identical view of the schedule.
type Report struct {
	ID        string         `json:"id" bson:"_id"`
	Program   string         `json:"program" bson:"program"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	Options   OptionsView    `json:"options" bson:"options"`
	Regions   []RegionReport `json:"regions" bson:"regions"`
}

// OptionsView records the legalization options a report was produced with.
type OptionsView struct {
	InsertCopy bool `json:"insert_copy" bson:"insert_copy"`
	MinGran    int  `json:"min_gran" bson:"min_gran"`
}

// RegionReport is the per-region slice of a report: the scheduled nodes in
// program order plus aggregate statistics.
type RegionReport struct {
	Name      string       `json:"name" bson:"name"`
	Legalized bool         `json:"legalized" bson:"legalized"`
	Nodes     []NodeReport `json:"nodes" bson:"nodes"`
	Stats     Stats        `json:"stats" bson:"stats"`
}

// NodeReport is the unified node view for all serialization contexts.
type NodeReport struct {
	Name        string   `json:"name" bson:"name"`
	Kind        string   `json:"kind" bson:"kind"`
	Level       int64    `json:"level,omitempty" bson:"level,omitempty"`
	Synthesized bool     `json:"synthesized,omitempty" bson:"synthesized,omitempty"`
	Origin      string   `json:"origin,omitempty" bson:"origin,omitempty"`
	Loads       []string `json:"loads,omitempty" bson:"loads,omitempty"`
	Stores      []string `json:"stores,omitempty" bson:"stores,omitempty"`
	Args        []string `json:"args,omitempty" bson:"args,omitempty"`
	Results     []string `json:"results,omitempty" bson:"results,omitempty"`
}

// Stats summarizes a scheduled region.
type Stats struct {
	Levels      int64 `json:"levels" bson:"levels"`
	Nodes       int   `json:"nodes" bson:"nodes"`
	Synthesized int   `json:"synthesized" bson:"synthesized"`
	Buffers     int   `json:"buffers" bson:"buffers"`
}

// =============================================================================
// Region → Report Conversion
// =============================================================================

// FromRegion converts a legalized region into its report form. Nodes appear
// in program order; statistics are computed from the level annotations.
func FromRegion(r *prog.Region) RegionReport {
	rr := RegionReport{
		Name:      r.Name(),
		Legalized: r.Flag(legalize.FlagLegalized),
		Nodes:     make([]NodeReport, 0, len(r.Order())),
	}
	for _, id := range r.Order() {
		n := r.Node(id)
		nr := NodeReport{
			Name:        n.Name,
			Kind:        n.Kind.String(),
			Synthesized: n.Synthesized(),
			Origin:      n.Origin,
			Loads:       n.Loads,
			Stores:      n.Stores,
			Args:        n.Args,
			Results:     n.Results,
		}
		if l, ok := r.IntAttr(id, legalize.AttrLevel); ok {
			nr.Level = l
			if l > rr.Stats.Levels {
				rr.Stats.Levels = l
			}
		}
		if nr.Synthesized {
			rr.Stats.Synthesized++
		}
		rr.Nodes = append(rr.Nodes, nr)
	}
	rr.Stats.Nodes = len(rr.Nodes)
	rr.Stats.Buffers = len(r.Buffers())
	return rr
}

// FromProgram converts a legalized program into a report with a fresh ID.
func FromProgram(p *prog.Program, opts legalize.Options) *Report {
	rep := &Report{
		ID:        uuid.NewString(),
		Program:   p.Name,
		CreatedAt: time.Now().UTC(),
		Options:   OptionsView{InsertCopy: opts.InsertCopy, MinGran: opts.MinGran},
	}
	for _, r := range p.Regions {
		rep.Regions = append(rep.Regions, FromRegion(r))
	}
	return rep
}

// Region returns the named region report, or nil if absent.
func (r *Report) Region(name string) *RegionReport {
	for i := range r.Regions {
		if r.Regions[i].Name == name {
			return &r.Regions[i]
		}
	}
	return nil
}
