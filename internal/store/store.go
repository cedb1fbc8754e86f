package store

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/coderag/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable indicates the store could not be reached or opened.
	// Fatal for a run; nothing beyond already-flushed writes is assumed.
	ErrUnavailable = errors.New("vector store unavailable")
	// ErrDimensionMismatch indicates a vector whose length does not match
	// the dimension established for this index, or a model identity
	// change. Recovering requires an explicit forced full reindex.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ChunkWithVector pairs a chunk with its embedding for upsert. The store
// writes all fields of one chunk together; a chunk can never end up with
// a vector from one write and metadata from another.
type ChunkWithVector struct {
	Chunk  types.Chunk
	Vector []float32
}

// StoredChunk is a chunk as persisted, with its vector and write time.
type StoredChunk struct {
	Chunk         types.Chunk
	Vector        []float32
	LastIndexedAt time.Time
}

// SearchHit is one ranked similarity result.
type SearchHit struct {
	Chunk         types.Chunk
	Score         float64
	LastIndexedAt time.Time
}

// SearchFilters narrows a similarity search over stored fields.
type SearchFilters struct {
	Language   string // Equality; empty matches all
	PathPrefix string // FilePath prefix; empty matches all
}

// Stats summarizes the index contents.
type Stats struct {
	TotalChunks int
	TotalFiles  int
	PerLanguage map[string]int
}

// FileRecord tracks one indexed file: the whole-file fingerprint used as
// the cheap skip test, and the chunk IDs the file currently owns. Owned
// and mutated exclusively by the indexing orchestrator.
type FileRecord struct {
	FilePath        string
	LastContentHash [32]byte
	ChunkIDs        []string
	LastIndexedAt   time.Time
}

// ModelInfo is the embedding identity established for an index. Mixing
// vectors from two models in one store is an invariant violation.
type ModelInfo struct {
	Model     string
	Dimension int
}

// Store persists chunk vectors with metadata and answers nearest-neighbor
// queries. All operations are scoped to one logical collection per
// project root (one database file per root).
type Store interface {
	// Chunk operations
	UpsertChunks(ctx context.Context, chunks []ChunkWithVector) error
	DeleteChunks(ctx context.Context, chunkIDs []string) (int, error)
	DeleteByFile(ctx context.Context, filePath string) (int, error)
	GetByFile(ctx context.Context, filePath string) ([]StoredChunk, error)

	// Search returns the topK most similar chunks. Ties break by most
	// recent LastIndexedAt, then ChunkID ascending, for determinism.
	Search(ctx context.Context, vector []float32, topK int, filters *SearchFilters) ([]SearchHit, error)

	// File record operations (orchestrator-owned rows)
	GetFileRecord(ctx context.Context, filePath string) (*FileRecord, error)
	UpsertFileRecord(ctx context.Context, rec *FileRecord) error
	DeleteFileRecord(ctx context.Context, filePath string) error
	ListFileRecords(ctx context.Context) ([]*FileRecord, error)

	// Index metadata
	ModelInfo(ctx context.Context) (*ModelInfo, error) // ErrNotFound before first write
	SetModelInfo(ctx context.Context, info ModelInfo) error

	Stats(ctx context.Context) (*Stats, error)

	// Clear irreversibly wipes the collection, including model identity.
	Clear(ctx context.Context) error

	Close() error
}
