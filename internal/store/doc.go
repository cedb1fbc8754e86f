// Package store persists chunk vectors with metadata in SQLite and
// answers top-K similarity queries.
//
// One database file per project root gives collection scoping for free:
// no cross-project leakage is possible because no two projects share a
// database. Vectors are stored as little-endian float32 blobs in the same
// row as the chunk metadata, written in a single statement, so a chunk
// can never carry a vector from one write and metadata from another.
//
// The store also holds the orchestrator-owned file records (whole-file
// fingerprint plus owned chunk IDs) and the index-wide embedding model
// identity. Upserts are dimension-guarded: a vector whose length differs
// from the established dimension fails with ErrDimensionMismatch before
// anything is written.
//
// Two drivers are supported via build tags: modernc.org/sqlite (pure Go,
// default) and mattn/go-sqlite3 (cgo, -tags cgo_sqlite).
package store
