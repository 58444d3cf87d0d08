// Package pkg provides the core libraries for flowlevel dataflow legalization.
//
// # Overview
//
// Flowlevel assigns the operations of a dataflow program to pipeline levels
// so that data only crosses between adjacent levels. The pkg directory is
// organized into three main areas:
//
//  1. Domain logic: [prog] (program IR and manifests), [legalize] (level
//     assignment, bypass resolution, compaction), [render] (level diagrams),
//     [report] (serialized results)
//  2. Infrastructure: [cache] (report/artifact caching), [store] (report
//     archive), [errors], [observability], [buildinfo]
//  3. Orchestration: [pipeline] (parse → legalize → render)
//
// # Architecture
//
// The typical data flow through flowlevel:
//
//	TOML manifest
//	      ↓ prog.ParseManifest
//	prog.Program
//	      ↓ legalize.Run (per region)
//	leveled regions
//	      ↓ report.FromProgram / render.ToDOT
//	report JSON, DOT/SVG/PNG diagrams
//
// The pipeline package drives the stages, caches intermediate results, and
// is shared by the CLI and the HTTP API.
package pkg
