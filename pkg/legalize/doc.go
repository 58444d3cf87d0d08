// Package legalize assigns pipeline stages ("dataflow levels") to the
// nodes of a region and rewrites the region so the level structure is
// valid for downstream pipeline passes.
//
// # Pipeline
//
// [Run] applies four phases in order, all destructive on the region:
//
//  1. [Successors] builds the producer→consumer edge map, covering both
//     shared-buffer edges between loops and shaped-value uses.
//  2. ALAP assignment walks the block in reverse program order and gives
//     every dataflow node the latest level consistent with its consumers.
//  3. Bypass resolution handles edges spanning more than one stage
//     boundary, either by inserting explicit buffering chains
//     (Options.InsertCopy) or by recording merge spans.
//  4. Compaction moves each level into a contiguous run, merges levels
//     according to the minimum granularity and recorded spans, and
//     renumbers densely from 1.
//
// Levels live in the region's attribute store under [AttrLevel]; a
// completed run sets the [FlagLegalized] region flag.
//
// # Errors
//
// The only failure mode is an [*Error]: the ALAP walk met a successor
// without an assigned level, meaning the region has a dependency cycle or
// an edge not ordered producer-before-consumer. The region is then left
// partially annotated and must be discarded by the caller.
package legalize
