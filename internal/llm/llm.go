// Package llm provides chat and completion clients used by the ask
// surface to answer questions over retrieved code context.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/coderag/internal/memory"
)

// Errors returned by LLM clients.
var (
	ErrProviderFailed      = errors.New("llm provider request failed")
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
)

// Defaults applied when options are zero-valued.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// Client generates text from a model. Implementations are safe for
// concurrent use.
type Client interface {
	// Generate produces a completion for a single prompt. system may be
	// empty.
	Generate(ctx context.Context, prompt, system string) (string, error)

	// Chat produces a reply given conversation history. system may be
	// empty.
	Chat(ctx context.Context, messages []memory.Message, system string) (string, error)

	// Model returns the model identifier.
	Model() string

	Close() error
}

// Config selects and tunes an LLM provider.
type Config struct {
	Provider    string // "ollama" or "openai"
	Model       string
	BaseURL     string // Ollama only
	APIKey      string // OpenAI only
	Temperature float64
	MaxTokens   int
}

func (c *Config) setDefaults() {
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
}

// New creates a Client for the configured provider. Provider defaults to
// ollama.
func New(cfg Config) (Client, error) {
	cfg.setDefaults()
	switch cfg.Provider {
	case "", ProviderOllama:
		return NewOllamaClient(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}
