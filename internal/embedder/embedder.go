package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors. Each maps to a distinct provider failure mode so callers
// can tell connection trouble from a missing model from a bad payload.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmptyText           = errors.New("text cannot be empty")
	ErrProviderFailed      = errors.New("embedding provider failed")
	ErrModelNotAvailable   = errors.New("embedding model not available")
	ErrMalformedResponse   = errors.New("malformed embedding response")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
)

// Embedder converts text to fixed-length vectors through an external
// provider. Implementations batch transparently: an oversized input set is
// split at the provider's batch bound, and results come back one vector
// per input, same order.
type Embedder interface {
	// Embed generates a single embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. The returned
	// slice has exactly one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the vector length this provider/model produces.
	// May be zero until the first successful call for providers that
	// learn it from the response.
	Dimension() int

	// Provider returns the provider name (ollama, openai, local).
	Provider() string

	// Model returns the model identity; the orchestrator refuses to mix
	// vectors from two model identities in one index.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides in-memory LRU caching of embeddings keyed by content
// hash, so re-embedding identical text within a process is free.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector. The copy keeps caller mutations
// out of the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, true
}

// Set stores a vector, evicting the least recently used entry at capacity.
func (c *Cache) Set(hash string, v []float32) {
	c.cache.Add(hash, v)
}

// Len returns the current cache size.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// ComputeHash returns the SHA-256 hex digest of text, the cache key.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateTexts rejects empty batches and empty members up front.
func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
