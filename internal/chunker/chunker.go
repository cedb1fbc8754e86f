package chunker

import (
	"strings"

	"github.com/dshills/coderag/pkg/types"
)

const (
	// DefaultWindowSize is the target maximum characters per generic chunk.
	DefaultWindowSize = 1000
	// DefaultOverlap is the character overlap between consecutive generic
	// windows, so a concept split across a boundary appears whole in at
	// least one chunk.
	DefaultOverlap = 200
)

// structuralFn parses content with a language grammar and returns chunks.
// A non-nil error routes the file to generic chunking; it never reaches
// the caller of ChunkFile.
type structuralFn func(filePath, content string) ([]types.Chunk, error)

// Chunker splits file content into an ordered sequence of chunks.
// Language-aware for languages with a registered structural strategy,
// generic sliding-window otherwise.
type Chunker struct {
	windowSize int
	overlap    int
	structural map[string]structuralFn
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithWindow overrides the generic window size and overlap. A zero size
// keeps the current window; the overlap is validated against whichever
// size is in effect and clamped so it always stays below the window.
func WithWindow(size, overlap int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.windowSize = size
		}
		if overlap >= 0 && overlap < c.windowSize {
			c.overlap = overlap
		}
		if c.overlap >= c.windowSize {
			c.overlap = c.windowSize / 2
		}
	}
}

// New creates a Chunker with the structural strategies registered in the
// language dispatch table.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		windowSize: DefaultWindowSize,
		overlap:    DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.structural = map[string]structuralFn{
		"go": c.chunkGo,
	}
	return c
}

// ChunkFile splits content into chunks. A structural parse failure is not
// an error: the file is silently routed to generic chunking instead, which
// produces at least one chunk for any non-empty input. Chunking the same
// content twice yields identical ChunkID and ContentHash sequences.
func (c *Chunker) ChunkFile(filePath, content, language string) []types.Chunk {
	if content == "" {
		return nil
	}

	if fn, ok := c.structural[language]; ok {
		chunks, err := fn(filePath, content)
		if err == nil && len(chunks) > 0 {
			return c.finalize(filePath, language, chunks)
		}
		// Structural parse failure routes to generic chunking.
	}

	return c.finalize(filePath, language, c.chunkGeneric(content))
}

// chunkGeneric produces fixed-size line windows with overlap.
func (c *Chunker) chunkGeneric(content string) []types.Chunk {
	lines := strings.Split(content, "\n")

	if len(content) <= c.windowSize {
		return []types.Chunk{{
			Content:   content,
			ChunkType: types.ChunkGenericBlock,
			StartLine: 1,
			EndLine:   len(lines),
		}}
	}

	var chunks []types.Chunk
	var window []string
	length := 0
	startLine := 1

	for i, line := range lines {
		window = append(window, line)
		length += len(line) + 1 // newline

		if length >= c.windowSize || i == len(lines)-1 {
			body := strings.Join(window, "\n")
			// A trailing window of pure whitespace carries no content worth
			// embedding.
			if strings.TrimSpace(body) != "" {
				chunks = append(chunks, types.Chunk{
					Content:   body,
					ChunkType: types.ChunkGenericBlock,
					StartLine: startLine,
					EndLine:   i + 1,
				})
			}

			if i == len(lines)-1 {
				break
			}

			// Seed the next window with the trailing overlap.
			overlapChars := 0
			var carry []string
			for j := len(window) - 1; j >= 0 && overlapChars < c.overlap; j-- {
				carry = append([]string{window[j]}, carry...)
				overlapChars += len(window[j]) + 1
			}
			window = carry
			length = overlapChars
			startLine = i + 2 - len(carry)
		}
	}

	return chunks
}

// finalize stamps ownership, hashes, and deterministic IDs onto chunks in
// order. Occurrence ordinals disambiguate byte-equal chunks within a file;
// because chunks arrive sorted by StartLine, the ordinals are stable.
func (c *Chunker) finalize(filePath, language string, chunks []types.Chunk) []types.Chunk {
	seen := make(map[[32]byte]int, len(chunks))
	for i := range chunks {
		chunks[i].FilePath = filePath
		chunks[i].Language = language
		chunks[i].ComputeContentHash()
		occ := seen[chunks[i].ContentHash]
		seen[chunks[i].ContentHash] = occ + 1
		chunks[i].ChunkID = types.ComputeChunkID(filePath, chunks[i].ContentHash, occ)
	}
	return chunks
}
