// Package chunker splits file content into ordered, deterministic chunks.
//
// Languages with a structural grammar registered in the dispatch table get
// definition-level chunks (functions, methods, types) carrying their
// leading documentation in metadata. Everything else, including files
// whose structural parse fails, gets fixed-size line windows with a
// configurable overlap. The fallback is a policy, not an accident: a
// syntax error never surfaces to the caller.
//
// Determinism is load-bearing. Chunking the same content twice must yield
// identical ChunkID and ContentHash sequences, because change detection
// diffs those IDs across runs.
package chunker
