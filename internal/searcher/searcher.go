package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/coderag/internal/embedder"
	"github.com/dshills/coderag/internal/store"
	"github.com/dshills/coderag/pkg/types"
)

// ErrModelMismatch indicates the query embedder does not match the model
// the index was built with. Scores across models are meaningless, so this
// is a hard error rather than a degraded result.
var ErrModelMismatch = errors.New("query embedding model does not match the index")

const (
	// DefaultCacheSize bounds the query result cache.
	DefaultCacheSize = 128
	// DefaultCacheTTL is how long a cached result set stays valid. Short,
	// because an indexing run can change the answer at any time.
	DefaultCacheTTL = 2 * time.Minute
)

type cacheEntry struct {
	results []types.ScoredChunk
	at      time.Time
}

// Searcher answers similarity queries against one project's index. Query
// ordering is deterministic for a fixed index state; ties on score are
// broken by recency and then chunk ID.
//
// Re-ranking strategies beyond raw cosine similarity (MMR diversification,
// lexical hybrid scoring) would slot in between the store search and the
// rank assignment below; none are implemented.
type Searcher struct {
	store    store.Store
	embedder embedder.Embedder
	cache    *lru.Cache[string, cacheEntry]
	ttl      time.Duration
}

// New creates a Searcher. The embedder must be the same model the index
// was built with; every Search verifies this against the store.
func New(st store.Store, emb embedder.Embedder) (*Searcher, error) {
	cache, err := lru.New[string, cacheEntry](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &Searcher{
		store:    st,
		embedder: emb,
		cache:    cache,
		ttl:      DefaultCacheTTL,
	}, nil
}

// Search embeds the query text and returns the topK most similar chunks,
// ranked. An empty index yields an empty slice, not an error.
func (s *Searcher) Search(ctx context.Context, query types.Query) ([]types.ScoredChunk, error) {
	query.Normalize()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkModelIdentity(ctx); err != nil {
		return nil, err
	}

	key := cacheKey(query)
	if entry, ok := s.cache.Get(key); ok && time.Since(entry.at) < s.ttl {
		return entry.results, nil
	}

	vector, err := s.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filters *store.SearchFilters
	if query.Language != "" || query.PathPrefix != "" {
		filters = &store.SearchFilters{
			Language:   query.Language,
			PathPrefix: query.PathPrefix,
		}
	}

	hits, err := s.store.Search(ctx, vector, query.TopK, filters)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]types.ScoredChunk, len(hits))
	for i, h := range hits {
		results[i] = types.ScoredChunk{
			Chunk: h.Chunk,
			Score: h.Score,
			Rank:  i + 1,
		}
	}

	s.cache.Add(key, cacheEntry{results: results, at: time.Now()})
	return results, nil
}

// InvalidateCache drops all cached query results. Callers run it after an
// indexing run so stale result sets do not outlive their TTL.
func (s *Searcher) InvalidateCache() {
	s.cache.Purge()
}

// checkModelIdentity rejects queries when the store was built with a
// different embedding model. An index with no identity yet is simply
// empty; searching it is allowed and returns nothing.
func (s *Searcher) checkModelIdentity(ctx context.Context) error {
	info, err := s.store.ModelInfo(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read model identity: %w", err)
	}
	if info.Model != s.embedder.Model() {
		return fmt.Errorf("%w (index built with %q, configured %q)", ErrModelMismatch, info.Model, s.embedder.Model())
	}
	return nil
}

func cacheKey(q types.Query) string {
	return strings.Join([]string{q.Text, fmt.Sprint(q.TopK), q.Language, q.PathPrefix}, "\x00")
}
