package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	ProviderOpenAI = "openai"

	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	OpenAIDimension    = 1536

	// OpenAIBatchLimit is the most texts sent in one API call.
	OpenAIBatchLimit = 100
)

// OpenAIProvider implements Embedder against an OpenAI-compatible
// embeddings endpoint. Unlike Ollama, the API takes the whole batch in
// one request.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI embedder. An empty apiKey falls back
// to OPENAI_API_KEY.
func NewOpenAIProvider(apiKey, baseURL, model string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrProviderFailed)
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))

	// Resolve cache hits first; only misses hit the API.
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if p.cache != nil {
			if v, ok := p.cache.Get(ComputeHash(text)); ok {
				vectors[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	for start := 0; start < len(missTexts); start += OpenAIBatchLimit {
		end := start + OpenAIBatchLimit
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch := missTexts[start:end]

		cfg := DefaultRetryConfig()
		got, err := retryWithBackoff(ctx, cfg, func() ([][]float32, error) {
			return p.callAPI(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, cfg.MaxRetries, err)
		}

		for j, v := range got {
			i := missIdx[start+j]
			vectors[i] = v
			if p.cache != nil {
				p.cache.Set(ComputeHash(texts[i]), v)
			}
		}
	}

	return vectors, nil
}

func (p *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	// A count mismatch is a protocol violation, not a retryable blip.
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d embeddings", ErrMalformedResponse, len(texts), len(apiResp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrMalformedResponse, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (p *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (p *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
