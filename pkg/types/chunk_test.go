package types

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChunkID_Deterministic(t *testing.T) {
	hash := sha256.Sum256([]byte("func main() {}"))

	id1 := ComputeChunkID("cmd/main.go", hash, 0)
	id2 := ComputeChunkID("cmd/main.go", hash, 0)
	assert.Equal(t, id1, id2, "same inputs must produce the same ID")
	assert.Len(t, id1, 32, "ID is 16 bytes hex encoded")
}

func TestComputeChunkID_PathDependent(t *testing.T) {
	hash := sha256.Sum256([]byte("func helper() {}"))

	idA := ComputeChunkID("a.go", hash, 0)
	idB := ComputeChunkID("b.go", hash, 0)
	assert.NotEqual(t, idA, idB, "identical content in different files gets different IDs")
}

func TestComputeChunkID_OccurrenceDisambiguates(t *testing.T) {
	hash := sha256.Sum256([]byte("# section"))

	first := ComputeChunkID("notes.md", hash, 0)
	second := ComputeChunkID("notes.md", hash, 1)
	assert.NotEqual(t, first, second, "byte-equal chunks in one file must not collide")
}

func TestChunkValidate(t *testing.T) {
	valid := Chunk{
		ChunkID:   "abc123",
		FilePath:  "pkg/util.go",
		Content:   "func Util() {}",
		StartLine: 1,
		EndLine:   1,
		ChunkType: ChunkFunction,
	}
	valid.ComputeContentHash()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Chunk)
	}{
		{"empty content", func(c *Chunk) { c.Content = "" }},
		{"missing id", func(c *Chunk) { c.ChunkID = "" }},
		{"missing path", func(c *Chunk) { c.FilePath = "" }},
		{"zero start line", func(c *Chunk) { c.StartLine = 0 }},
		{"inverted lines", func(c *Chunk) { c.StartLine = 5; c.EndLine = 2 }},
		{"bad type", func(c *Chunk) { c.ChunkType = "paragraph" }},
		{"no hash", func(c *Chunk) { c.ContentHash = [32]byte{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestQueryNormalizeAndValidate(t *testing.T) {
	q := Query{Text: "parse config"}
	q.Normalize()
	assert.Equal(t, DefaultTopK, q.TopK)
	assert.NoError(t, q.Validate())

	empty := Query{}
	empty.Normalize()
	assert.ErrorIs(t, empty.Validate(), ErrEmptyQuery)
}

func TestRunReportSummary(t *testing.T) {
	clean := RunReport{Outcome: RunClean}
	assert.Equal(t, "clean", clean.Summary())

	withErrors := RunReport{
		Outcome:         RunWithErrors,
		EmbeddingErrors: 1,
		Files: []FileReport{
			{FilePath: "a.go", Outcome: FileFailed, Error: "boom"},
			{FilePath: "b.go", Outcome: FileModified},
		},
	}
	assert.Equal(t, 1, withErrors.ErrorCount())
	assert.Contains(t, withErrors.Summary(), "2 errors")

	aborted := RunReport{Outcome: RunAborted, AbortReason: "store unavailable"}
	assert.Contains(t, aborted.Summary(), "store unavailable")
}
