// Package prog defines the dataflow program representation consumed by the
// legalizer.
//
// # Overview
//
// A [Program] is a list of [Region] values, one per function-like scope.
// Each region owns an arena of [Node] values addressed by stable integer
// [ID] indices, the [Buffer] and [Value] entities those nodes reference,
// and annotation side tables (named integer attributes per node, boolean
// flags per region).
//
// Arena indexing is deliberate: node identity is an index, not a pointer,
// so annotation tables survive reordering and regions can be processed on
// independent goroutines without identity-hashing concerns.
//
// # Node shapes
//
// Two shapes matter for scheduling. Loop nodes access shared buffers
// through their interior (Loads/Stores); compute nodes consume and produce
// named values, of which only shaped values form dataflow edges. The
// remaining kinds (alloc, const, return) are bookkeeping and are never
// scheduled.
//
// # Manifests
//
// [ParseManifest] builds a Program from the TOML manifest format described
// on [Manifest].
package prog
