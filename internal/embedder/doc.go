// Package embedder adapts external text-to-vector providers behind a
// uniform batched interface.
//
// Providers: ollama (default, local server), openai (hosted), and local
// (deterministic hash-derived vectors, used as the test stub). All
// providers split oversized batches transparently, retry failed calls
// with exponential backoff, and cache vectors by content hash in an LRU.
//
// Model identity matters: the Model and Dimension accessors let the
// indexing orchestrator refuse to mix vectors from two different models
// in one index.
package embedder
