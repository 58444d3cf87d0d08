package render

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/mhersch/flowlevel/pkg/legalize"
	"github.com/mhersch/flowlevel/pkg/prog"
)

// legalizedRegion builds a three stage pipeline with one bypass, so the
// rendered output contains both original and synthesized nodes.
func legalizedRegion(t *testing.T) *prog.Region {
	t.Helper()
	r := prog.New("forward")
	for _, b := range []string{"fm1", "fm2"} {
		_, err := r.AddBuffer(b)
		require.NoError(t, err)
	}
	nodes := []prog.Node{
		{Name: "conv1", Kind: prog.KindLoop, Stores: []string{"fm1"}},
		{Name: "conv2", Kind: prog.KindLoop, Loads: []string{"fm1"}, Stores: []string{"fm2"}},
		{Name: "fuse", Kind: prog.KindLoop, Loads: []string{"fm1", "fm2"}},
	}
	for _, n := range nodes {
		_, err := r.AddNode(n)
		require.NoError(t, err)
	}
	require.NoError(t, legalize.Run(r, legalize.DefaultOptions()))
	return r
}

func TestToDOT_Golden(t *testing.T) {
	r := legalizedRegion(t)

	dot := ToDOT(r, Options{})

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "forward", []byte(dot))
}

func TestToDOT_SynthesizedStyle(t *testing.T) {
	r := legalizedRegion(t)

	dot := ToDOT(r, Options{})

	require.Contains(t, dot, `"fm1_copy_2" [label="fm1_copy_2", style="rounded,filled,dashed", fillcolor=lightgrey, fontcolor=black];`)
	require.NotContains(t, dot, `"conv1" [label="conv1", style="rounded,filled,dashed"`)
}

func TestToDOT_RanksFollowLevels(t *testing.T) {
	r := legalizedRegion(t)

	dot := ToDOT(r, Options{})

	// Producers rank above consumers: level 3 first, level 1 last.
	top := strings.Index(dot, `{ rank=same; "conv1"; }`)
	mid := strings.Index(dot, `{ rank=same; "conv2"; "fm1_copy_2"; }`)
	bot := strings.Index(dot, `{ rank=same; "fuse"; }`)
	require.True(t, top >= 0 && mid >= 0 && bot >= 0, "missing rank groups in:\n%s", dot)
	require.Less(t, top, mid)
	require.Less(t, mid, bot)
}

func TestToDOT_DetailedLabels(t *testing.T) {
	r := legalizedRegion(t)

	dot := ToDOT(r, Options{Detailed: true})

	require.Contains(t, dot, `label="fuse\nlevel: 1\nloads: fm1_buf_2, fm2"`)
	require.Contains(t, dot, `label="conv1\nlevel: 3\nstores: fm1"`)
}
