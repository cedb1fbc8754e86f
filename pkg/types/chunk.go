package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ChunkType classifies how a chunk was carved out of its source file.
type ChunkType string

const (
	ChunkModule       ChunkType = "module"
	ChunkClass        ChunkType = "class"
	ChunkFunction     ChunkType = "function"
	ChunkGenericBlock ChunkType = "generic-block"
)

// LanguageUnknown routes a file to generic chunking.
const LanguageUnknown = "unknown"

// Chunk is the atomic indexed unit: one semantically coherent slice of a
// source file, addressable by a deterministic ChunkID.
type Chunk struct {
	// Identification
	ChunkID  string // Deterministic; stable across runs while content is unchanged
	FilePath string // Slash-separated, relative to the indexed root

	// Content
	Content     string
	ContentHash [32]byte // SHA-256 of Content; the unit of change detection

	// Location
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive

	// Classification
	ChunkType ChunkType
	Language  string

	// Language-specific facts (name, args, doc, decorators). Informational
	// only: never consulted for identity or dedup.
	Metadata map[string]string
}

// ComputeContentHash fills in the SHA-256 digest of the chunk content.
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// HashHex returns the content hash as lowercase hex.
func (c *Chunk) HashHex() string {
	return hex.EncodeToString(c.ContentHash[:])
}

// ComputeChunkID derives the chunk identifier from the owning file path,
// the content hash, and an occurrence ordinal that disambiguates byte-equal
// chunks within one file. Because the ID is a function of content rather
// than line position, an unchanged chunk keeps its ID even when edits
// elsewhere in the file shift it up or down.
func ComputeChunkID(filePath string, contentHash [32]byte, occurrence int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%x\x00%d", filePath, contentHash, occurrence)))
	return hex.EncodeToString(h[:16])
}

// Validate performs basic integrity checks on the chunk.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.ChunkID == "" {
		return ErrInvalidChunkID
	}
	if c.FilePath == "" {
		return errors.New("chunk file path is required")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	switch c.ChunkType {
	case ChunkModule, ChunkClass, ChunkFunction, ChunkGenericBlock:
	default:
		return fmt.Errorf("invalid chunk type %q", c.ChunkType)
	}
	var zero [32]byte
	if c.ContentHash == zero {
		return errors.New("content hash must be computed")
	}
	return nil
}
