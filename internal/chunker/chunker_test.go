package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coderag/pkg/types"
)

const goSample = `package sample

import "fmt"

// Greet prints a greeting.
func Greet(name string) {
	fmt.Println("hello", name)
}

// Counter tracks a count.
type Counter struct {
	n int
}

// Add increments the counter.
func (c *Counter) Add() {
	c.n++
}
`

func TestChunkFile_Deterministic(t *testing.T) {
	c := New()

	first := c.ChunkFile("sample.go", goSample, "go")
	second := c.ChunkFile("sample.go", goSample, "go")

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ChunkID, second[i].ChunkID)
		assert.Equal(t, first[i].ContentHash, second[i].ContentHash)
	}
}

func TestChunkFile_GoStructural(t *testing.T) {
	c := New()
	chunks := c.ChunkFile("sample.go", goSample, "go")
	require.NotEmpty(t, chunks)

	byName := map[string]types.Chunk{}
	for _, ch := range chunks {
		require.NoError(t, ch.Validate())
		assert.Equal(t, "sample.go", ch.FilePath)
		assert.Equal(t, "go", ch.Language)
		if name := ch.Metadata["name"]; name != "" {
			byName[name] = ch
		}
	}

	greet, ok := byName["Greet"]
	require.True(t, ok, "Greet function should be extracted")
	assert.Equal(t, types.ChunkFunction, greet.ChunkType)
	assert.Contains(t, greet.Content, "// Greet prints a greeting.")
	assert.Contains(t, greet.Metadata["doc"], "Greet prints")

	counter, ok := byName["Counter"]
	require.True(t, ok, "Counter type should be extracted")
	assert.Equal(t, types.ChunkClass, counter.ChunkType)

	add, ok := byName["Add"]
	require.True(t, ok, "Add method should be extracted")
	assert.Equal(t, "Counter", add.Metadata["receiver"])
}

func TestChunkFile_InvalidGoFallsBackToGeneric(t *testing.T) {
	c := New()
	broken := "package {{{ not go at all"

	chunks := c.ChunkFile("broken.go", broken, "go")
	require.Len(t, chunks, 1, "parse failure must route to generic chunking, not fail")
	assert.Equal(t, types.ChunkGenericBlock, chunks[0].ChunkType)
	assert.Equal(t, broken, chunks[0].Content)
}

func TestChunkFile_EmptyContent(t *testing.T) {
	c := New()
	assert.Nil(t, c.ChunkFile("empty.py", "", "python"))
}

func TestChunkFile_GenericSmallFile(t *testing.T) {
	c := New()
	content := "line one\nline two\nline three"

	chunks := c.ChunkFile("notes.txt", content, "text")
	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestChunkFile_GenericWindowsWithOverlap(t *testing.T) {
	c := New(WithWindow(100, 30))

	var sb strings.Builder
	for i := 1; i <= 40; i++ {
		fmt.Fprintf(&sb, "line %02d with some padding text\n", i)
	}
	content := strings.TrimSuffix(sb.String(), "\n")

	chunks := c.ChunkFile("big.txt", content, "text")
	require.Greater(t, len(chunks), 1, "content larger than the window must split")

	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
		if i > 0 {
			// Overlap: each window starts at or before the previous end line.
			assert.LessOrEqual(t, ch.StartLine, chunks[i-1].EndLine+1)
		}
	}
	// Every line of the file is covered by some chunk.
	last := chunks[len(chunks)-1]
	assert.Equal(t, 40, last.EndLine)
}

func TestWithWindow_OverlapOnly(t *testing.T) {
	// Overriding just the overlap keeps the default window size and still
	// applies the overlap.
	c := New(WithWindow(0, 300))
	assert.Equal(t, DefaultWindowSize, c.windowSize)
	assert.Equal(t, 300, c.overlap)

	// An overlap at or beyond the effective window is clamped below it.
	c = New(WithWindow(100, 150))
	assert.Equal(t, 100, c.windowSize)
	assert.Equal(t, 50, c.overlap)

	c = New(WithWindow(0, -1))
	assert.Equal(t, DefaultOverlap, c.overlap)
}

func TestChunkFile_DuplicateContentGetsDistinctIDs(t *testing.T) {
	c := New(WithWindow(30, 0))

	// Two identical oversized sections force byte-equal windows.
	section := "alpha beta gamma delta epsilon\n"
	content := section + section + section

	chunks := c.ChunkFile("dup.txt", content, "text")
	require.Greater(t, len(chunks), 1)

	ids := map[string]bool{}
	for _, ch := range chunks {
		assert.False(t, ids[ch.ChunkID], "chunk IDs must be unique within a file")
		ids[ch.ChunkID] = true
	}
}

func TestChunkFile_UnregisteredLanguageUsesGeneric(t *testing.T) {
	c := New()
	content := "def greet():\n    print('hi')\n"

	chunks := c.ChunkFile("app.py", content, "python")
	require.Len(t, chunks, 1)
	assert.Equal(t, types.ChunkGenericBlock, chunks[0].ChunkType)
}
