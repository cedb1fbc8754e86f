package searcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coderag/internal/embedder"
	"github.com/dshills/coderag/internal/store"
	"github.com/dshills/coderag/pkg/types"
)

func newTestSearcher(t *testing.T) (*Searcher, *store.SQLiteStore, embedder.Embedder) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	emb := embedder.NewLocalProvider(nil)
	s, err := New(st, emb)
	require.NoError(t, err)
	return s, st, emb
}

// seed embeds real content through the same embedder the searcher uses, so
// exact-text queries score 1.0 against their chunk.
func seed(t *testing.T, st *store.SQLiteStore, emb embedder.Embedder, contents map[string]string) {
	t.Helper()
	ctx := context.Background()

	var batch []store.ChunkWithVector
	line := 1
	for path, content := range contents {
		c := types.Chunk{
			FilePath:  path,
			Content:   content,
			StartLine: line,
			EndLine:   line + 2,
			ChunkType: types.ChunkGenericBlock,
			Language:  "go",
		}
		c.ComputeContentHash()
		c.ChunkID = types.ComputeChunkID(path, c.ContentHash, 0)
		v, err := emb.Embed(ctx, content)
		require.NoError(t, err)
		batch = append(batch, store.ChunkWithVector{Chunk: c, Vector: v})
		line += 10
	}
	require.NoError(t, st.UpsertChunks(ctx, batch))
	require.NoError(t, st.SetModelInfo(ctx, store.ModelInfo{
		Model:     emb.Model(),
		Dimension: emb.Dimension(),
	}))
}

func TestSearch_ExactContentRanksFirst(t *testing.T) {
	s, st, emb := newTestSearcher(t)
	seed(t, st, emb, map[string]string{
		"a.go": "func ParseConfig(path string) (*Config, error)",
		"b.go": "func RenderTemplate(w io.Writer, name string)",
		"c.go": "type Cache struct { entries map[string][]byte }",
	})

	results, err := s.Search(context.Background(), types.Query{
		Text: "func ParseConfig(path string) (*Config, error)",
		TopK: 3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "a.go", results[0].Chunk.FilePath,
		"the chunk whose content equals the query ranks first")
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)

	for i := 1; i < len(results); i++ {
		assert.Equal(t, i+1, results[i].Rank)
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	s, _, _ := newTestSearcher(t)

	results, err := s.Search(context.Background(), types.Query{Text: "anything"})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results, "an empty index is an empty result, not an error")
}

func TestSearch_EmptyQuery(t *testing.T) {
	s, _, _ := newTestSearcher(t)

	_, err := s.Search(context.Background(), types.Query{Text: ""})
	assert.ErrorIs(t, err, types.ErrEmptyQuery)
}

func TestSearch_ModelMismatch(t *testing.T) {
	s, st, _ := newTestSearcher(t)
	require.NoError(t, st.SetModelInfo(context.Background(), store.ModelInfo{
		Model:     "some-other-model",
		Dimension: 768,
	}))

	_, err := s.Search(context.Background(), types.Query{Text: "query"})
	assert.ErrorIs(t, err, ErrModelMismatch)
}

func TestSearch_Filters(t *testing.T) {
	s, st, emb := newTestSearcher(t)
	seed(t, st, emb, map[string]string{
		"pkg/a.go": "func Alpha() {}",
		"web/b.go": "func Beta() {}",
		"web/c.go": "func Gamma() {}",
	})

	results, err := s.Search(context.Background(), types.Query{
		Text:       "func Alpha() {}",
		PathPrefix: "web/",
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, len(r.Chunk.FilePath) >= 4 && r.Chunk.FilePath[:4] == "web/",
			"path filter restricts results")
	}
}

func TestSearch_CacheInvalidation(t *testing.T) {
	s, st, emb := newTestSearcher(t)
	seed(t, st, emb, map[string]string{"a.go": "func CachedThing() {}"})

	first, err := s.Search(context.Background(), types.Query{Text: "func CachedThing() {}"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Remove the chunk behind the cache's back; the cached result set still
	// answers until invalidated.
	_, err = st.DeleteByFile(context.Background(), "a.go")
	require.NoError(t, err)

	cached, err := s.Search(context.Background(), types.Query{Text: "func CachedThing() {}"})
	require.NoError(t, err)
	assert.Len(t, cached, 1, "served from cache")

	s.InvalidateCache()
	fresh, err := s.Search(context.Background(), types.Query{Text: "func CachedThing() {}"})
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
