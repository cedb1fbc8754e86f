package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	ProviderOllama = "ollama"

	DefaultOllamaModel = "nomic-embed-text"
	DefaultOllamaURL   = "http://localhost:11434"

	// DefaultBatchSize bounds the texts per provider call; larger request
	// sets are split transparently.
	DefaultBatchSize = 10

	// maxInFlight bounds concurrent requests within one batch so a big
	// batch does not hammer a local model server.
	maxInFlight = 4
)

// knownOllamaDimensions maps common embedding models to their vector
// length. Unlisted models learn their dimension from the first response.
var knownOllamaDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// OllamaProvider implements Embedder against a local Ollama server. The
// embeddings endpoint takes one prompt per call, so batches fan out with
// bounded parallelism.
type OllamaProvider struct {
	baseURL    string
	model      string
	batchSize  int
	httpClient *http.Client
	cache      *Cache
	dim        atomic.Int64
}

// NewOllamaProvider creates an Ollama embedder.
func NewOllamaProvider(baseURL, model string, batchSize int, cache *Cache) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	p := &OllamaProvider{
		baseURL:   baseURL,
		model:     model,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		cache: cache,
	}
	if d, ok := knownOllamaDimensions[model]; ok {
		p.dim.Store(int64(d))
	}
	return p
}

// CheckModel verifies the configured model is installed on the server.
func (p *OllamaProvider) CheckModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: tags endpoint returned %d", ErrProviderFailed, resp.StatusCode)
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	for _, m := range tags.Models {
		if m.Name == p.model || hasModelPrefix(m.Name, p.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not installed (ollama pull %s)", ErrModelNotAvailable, p.model, p.model)
}

func hasModelPrefix(name, model string) bool {
	return len(name) > len(model) && name[:len(model)] == model && name[len(model)] == ':'
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if p.cache != nil {
		if v, ok := p.cache.Get(hash); ok {
			return v, nil
		}
	}

	cfg := DefaultRetryConfig()
	vector, err := retryWithBackoff(ctx, cfg, func() ([]float32, error) {
		return p.callAPI(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, cfg.MaxRetries, err)
	}

	p.dim.CompareAndSwap(0, int64(len(vector)))
	if p.cache != nil {
		p.cache.Set(hash, vector)
	}
	return vector, nil
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := start + p.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxInFlight)
		for i := start; i < end; i++ {
			g.Go(func() error {
				v, err := p.Embed(gctx, texts[i])
				if err != nil {
					return fmt.Errorf("embedding text %d: %w", i, err)
				}
				vectors[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

// callAPI posts a single prompt to the Ollama embeddings endpoint.
func (p *OllamaProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{
		"model":  p.model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrModelNotAvailable, p.model)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(msg))
	}

	var apiResp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrMalformedResponse)
	}

	return apiResp.Embedding, nil
}

func (p *OllamaProvider) Dimension() int {
	return int(p.dim.Load())
}

func (p *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (p *OllamaProvider) Model() string {
	return p.model
}

func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
