package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mhersch/flowlevel/pkg/legalize"
	"github.com/mhersch/flowlevel/pkg/prog"
)

// Options configures DOT emission.
type Options struct {
	// Detailed includes level numbers and carrier lists in node labels.
	// When false, only the node name is shown.
	Detailed bool
}

// ToDOT converts a legalized region to Graphviz DOT format. Nodes sharing a
// pipeline level are placed on the same rank; edges follow the region's
// dataflow (buffer and value carriers alike). The resulting DOT string can
// be rendered with [RenderSVG] or [RenderPNG].
//
// Synthesized buffering nodes are rendered with dashed outlines and grey
// fill to distinguish them from original program nodes.
func ToDOT(r *prog.Region, opts Options) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", r.Name())
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	levels := make(map[int64][]string)
	var maxLevel int64
	for _, id := range r.Order() {
		n := r.Node(id)
		label := fmtLabel(r, id, n, opts.Detailed)
		attrs := fmtAttrs(n, label)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.Name, strings.Join(attrs, ", "))
		if l, ok := r.IntAttr(id, legalize.AttrLevel); ok {
			levels[l] = append(levels[l], n.Name)
			if l > maxLevel {
				maxLevel = l
			}
		}
	}

	buf.WriteString("\n")
	// Producers sit above consumers, so higher levels rank first.
	for l := maxLevel; l >= 1; l-- {
		names := levels[l]
		if len(names) == 0 {
			continue
		}
		buf.WriteString("  { rank=same;")
		for _, name := range names {
			fmt.Fprintf(&buf, " %q;", name)
		}
		buf.WriteString(" }\n")
	}

	buf.WriteString("\n")
	// Iterate program order so output is deterministic.
	succs := legalize.Successors(r)
	for _, id := range r.Order() {
		from := r.Node(id).Name
		for _, s := range succs[id] {
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", from, r.Node(s.Node).Name, s.Carrier.Name())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(r *prog.Region, id prog.ID, n *prog.Node, detailed bool) string {
	if !detailed {
		return n.Name
	}

	parts := []string{n.Name}
	if l, ok := r.IntAttr(id, legalize.AttrLevel); ok {
		parts = append(parts, fmt.Sprintf("level: %d", l))
	}
	if len(n.Loads) > 0 {
		parts = append(parts, "loads: "+strings.Join(n.Loads, ", "))
	}
	if len(n.Stores) > 0 {
		parts = append(parts, "stores: "+strings.Join(n.Stores, ", "))
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n *prog.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if n.Synthesized() {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}
