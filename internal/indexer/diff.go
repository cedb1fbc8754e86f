package indexer

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/coderag/internal/ignore"
	"github.com/dshills/coderag/internal/store"
	"github.com/dshills/coderag/pkg/types"
)

// fileDiff is the per-file output of the change detection phase. It carries
// everything the embedding and upserting phases need so the file is read and
// chunked exactly once per run.
type fileDiff struct {
	FilePath string // project-relative, slash-separated
	Outcome  types.FileOutcome
	NewHash  [32]byte

	// ToEmbed holds chunks whose IDs are not present in the stored file
	// record. Unchanged chunks never reach the embedder.
	ToEmbed []types.Chunk

	// KeepIDs are chunk IDs present both in the stored record and in the
	// fresh chunking. DeleteIDs existed in the record but no longer do.
	KeepIDs   []string
	DeleteIDs []string

	// OldIDs is the stored record's chunk ID set. A ToEmbed chunk whose ID
	// appears here is a forced re-embed, not a new chunk.
	OldIDs map[string]bool
}

// diffFile reads and classifies a single eligible file against its stored
// record. rec is nil for files never indexed before. With force set, the
// whole-file hash shortcut is bypassed and every chunk is re-embedded.
func (idx *Indexer) diffFile(relPath string, rec *store.FileRecord, force bool) (*fileDiff, error) {
	absPath := filepath.Join(idx.root, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	newHash := sha256.Sum256(content)
	if rec != nil && !force && newHash == rec.LastContentHash {
		return &fileDiff{
			FilePath: relPath,
			Outcome:  types.FileUnchanged,
			NewHash:  newHash,
		}, nil
	}

	language := ignore.Language(relPath)
	chunks := idx.chunker.ChunkFile(relPath, string(content), language)

	d := &fileDiff{
		FilePath: relPath,
		NewHash:  newHash,
	}
	if rec == nil {
		d.Outcome = types.FileAdded
	} else {
		d.Outcome = types.FileModified
	}

	oldIDs := make(map[string]bool, 8)
	if rec != nil {
		for _, id := range rec.ChunkIDs {
			oldIDs[id] = true
		}
	}

	d.OldIDs = oldIDs

	newIDs := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		newIDs[c.ChunkID] = true
		if force || !oldIDs[c.ChunkID] {
			d.ToEmbed = append(d.ToEmbed, c)
		} else {
			d.KeepIDs = append(d.KeepIDs, c.ChunkID)
		}
	}
	for id := range oldIDs {
		if !newIDs[id] {
			d.DeleteIDs = append(d.DeleteIDs, id)
		}
	}

	return d, nil
}
