// Package render turns legalized regions into visual outputs.
//
// # Overview
//
// Rendering is a two step pipeline: [ToDOT] emits a Graphviz description of
// a region with one rank per pipeline level, and [RenderSVG] or [RenderPNG]
// rasterize it.
//
//	dot := render.ToDOT(region, render.Options{Detailed: true})
//	svg, err := render.RenderSVG(ctx, dot)
//
// Synthesized buffering nodes are drawn dashed with a grey fill so inserted
// copies stand out from the original program.
package render
