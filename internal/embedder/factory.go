package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by NewFromEnv.
const (
	EnvProvider  = "CODERAG_EMBEDDING_PROVIDER"
	EnvModel     = "CODERAG_EMBEDDING_MODEL"
	EnvOllamaURL = "CODERAG_OLLAMA_URL"
)

// Config holds explicit embedder configuration.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	BatchSize int
	CacheSize int
}

// New creates an embedder with explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize != 0 {
		cache = NewCache(cfg.CacheSize)
	} else {
		cache = NewCache(0)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.BatchSize, cache), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from environment variables. Ollama is the
// default; OPENAI_API_KEY without an explicit provider selects OpenAI.
func NewFromEnv() (Embedder, error) {
	cfg := Config{
		Provider: strings.ToLower(os.Getenv(EnvProvider)),
		Model:    os.Getenv(EnvModel),
		BaseURL:  os.Getenv(EnvOllamaURL),
	}
	if cfg.Provider == "" && os.Getenv("OPENAI_API_KEY") != "" {
		cfg.Provider = ProviderOpenAI
		cfg.BaseURL = ""
	}
	return New(cfg)
}
