package embedder

import (
	"context"
	"crypto/sha256"
	"math"
)

const (
	ProviderLocal = "local"

	LocalModel     = "local-deterministic"
	LocalDimension = 384
)

// LocalProvider produces deterministic vectors derived from the content
// hash. It involves no network and no model; identical text always maps
// to the identical unit vector, which is exactly what tests need from an
// embedding stub.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the deterministic local embedder.
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{cache: cache}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if v, ok := l.cache.Get(hash); ok {
			return v, nil
		}
	}

	// Stretch the 32-byte digest across the vector by re-hashing with a
	// counter, then normalize to unit length so cosine scores are exact
	// matches at 1.0.
	vector := make([]float32, LocalDimension)
	seed := sha256.Sum256([]byte(text))
	block := seed
	for i := 0; i < LocalDimension; i++ {
		if i%32 == 0 && i > 0 {
			block = sha256.Sum256(append(block[:], byte(i/32)))
		}
		vector[i] = float32(block[i%32])/255.0 - 0.5
	}
	normalize(vector)

	if l.cache != nil {
		l.cache.Set(hash, vector)
	}
	return vector, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return LocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

// normalize scales v to unit length in place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
