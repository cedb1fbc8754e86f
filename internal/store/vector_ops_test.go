package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchChunks(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	chunks := []struct {
		path    string
		content string
		lang    string
		vector  []float32
	}{
		{"pkg/math.go", "func Add(a, b int) int", "go", []float32{1, 0, 0}},
		{"pkg/math.go", "func Sub(a, b int) int", "go", []float32{0.9, 0.1, 0}},
		{"web/app.py", "def render(template)", "python", []float32{0, 1, 0}},
		{"docs/guide.md", "# installation guide", "markdown", []float32{0, 0, 1}},
	}
	var batch []ChunkWithVector
	for i, c := range chunks {
		ch := makeChunk(c.path, c.content, i*10+1)
		ch.Language = c.lang
		batch = append(batch, ChunkWithVector{Chunk: ch, Vector: c.vector})
	}
	require.NoError(t, s.UpsertChunks(ctx, batch))
}

func TestSearch_RankingAndTopK(t *testing.T) {
	s := openTestStore(t)
	seedSearchChunks(t, s)

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "func Add(a, b int) int", hits[0].Chunk.Content, "exact direction ranks first")
	assert.Equal(t, "func Sub(a, b int) int", hits[1].Chunk.Content)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearch_EmptyIndex(t *testing.T) {
	s := openTestStore(t)

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.NotNil(t, hits, "empty index returns an empty slice, not nil")
	assert.Empty(t, hits)
}

func TestSearch_Filters(t *testing.T) {
	s := openTestStore(t)
	seedSearchChunks(t, s)
	ctx := context.Background()

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 10, &SearchFilters{Language: "python"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "web/app.py", hits[0].Chunk.FilePath)

	hits, err = s.Search(ctx, []float32{1, 0, 0}, 10, &SearchFilters{PathPrefix: "pkg/"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.Search(ctx, []float32{1, 0, 0}, 10, &SearchFilters{PathPrefix: "nope/"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_DeterministicTieBreak(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Two chunks with identical vectors and write time tie on score and
	// recency; chunk ID ascending breaks the tie.
	a := makeChunk("tie/a.go", "func TieA() {}", 1)
	b := makeChunk("tie/b.go", "func TieB() {}", 1)
	require.NoError(t, s.UpsertChunks(ctx, []ChunkWithVector{
		{Chunk: a, Vector: []float32{1, 1, 0}},
		{Chunk: b, Vector: []float32{1, 1, 0}},
	}))

	first, err := s.Search(ctx, []float32{1, 1, 0}, 2, nil)
	require.NoError(t, err)
	second, err := s.Search(ctx, []float32{1, 1, 0}, 2, nil)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first[0].Chunk.ChunkID, second[0].Chunk.ChunkID, "tied results keep a stable order")
	assert.Less(t, first[0].Chunk.ChunkID, first[1].Chunk.ChunkID)
}

func TestVectorSerialization(t *testing.T) {
	v := []float32{0.5, -1.25, 3.75, 0}
	assert.Equal(t, v, deserializeVector(serializeVector(v)))
	assert.Empty(t, deserializeVector(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}), "zero vector scores zero")
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "a\\%b\\_c", escapeLike("a%b_c"))
	assert.Equal(t, "plain/path", escapeLike("plain/path"))
}
