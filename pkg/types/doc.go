// Package types provides the shared domain types for coderag.
//
// # Core Types
//
// Chunk is the atomic indexed unit: a slice of one source file with a
// deterministic identifier and a content digest:
//
//	chunk := types.Chunk{
//	    Content:   body,
//	    FilePath:  "internal/server/handler.go",
//	    ChunkType: types.ChunkFunction,
//	    Language:  "go",
//	    StartLine: 12,
//	    EndLine:   40,
//	}
//	chunk.ComputeContentHash()
//	chunk.ChunkID = types.ComputeChunkID(chunk.FilePath, chunk.ContentHash, 0)
//
// ChunkIDs are derived from file path plus content hash, so re-running the
// indexer over an unchanged tree never duplicates entries, and a content
// change retires the old ID and writes a new one.
//
// Query is an ephemeral retrieval request; ScoredChunk is one ranked
// result. RunReport is the statistics structure an indexing run returns,
// rendered by the CLI and MCP surfaces.
package types
