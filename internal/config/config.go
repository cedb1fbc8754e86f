// Package config loads project configuration from .coderag.yaml in the
// project root, layered with environment variables. A .env file in the
// project root is loaded first so either source can hold provider keys.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project config file looked up at the project root.
const ConfigFileName = ".coderag.yaml"

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider,omitempty"` // ollama, openai, local
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"` // Ollama only
}

// LLMConfig selects the chat model behind the ask command.
type LLMConfig struct {
	Provider    string  `yaml:"provider,omitempty"` // ollama, openai
	Model       string  `yaml:"model,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// IndexConfig tunes file selection and chunking.
type IndexConfig struct {
	Include     []string `yaml:"include,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
	MaxFileSize int64    `yaml:"max_file_size,omitempty"` // bytes
	WindowSize  int      `yaml:"window_size,omitempty"`   // chars per generic chunk
	Overlap     int      `yaml:"overlap,omitempty"`
	Workers     int      `yaml:"workers,omitempty"`
}

// Config is the in-memory representation of .coderag.yaml.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Index     IndexConfig     `yaml:"index,omitempty"`
}

// Load reads configuration for the project rooted at root. A missing
// .coderag.yaml yields defaults, not an error; a malformed one is fatal.
// Environment variables override file values.
func Load(root string) (*Config, error) {
	// Side effect only; a missing .env is the normal case.
	_ = godotenv.Load(filepath.Join(root, ".env"))

	cfg := &Config{}
	path := filepath.Join(root, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err == nil {
		if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
			return nil, fmt.Errorf("cannot parse config %s: %w", path, uerr)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to the project root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cannot encode config: %w", err)
	}
	path := filepath.Join(root, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Embedding.Provider, "CODERAG_EMBEDDING_PROVIDER")
	setStr(&c.Embedding.Model, "CODERAG_EMBEDDING_MODEL")
	setStr(&c.Embedding.BaseURL, "CODERAG_OLLAMA_URL")
	setStr(&c.LLM.Provider, "CODERAG_LLM_PROVIDER")
	setStr(&c.LLM.Model, "CODERAG_LLM_MODEL")
	setStr(&c.LLM.BaseURL, "CODERAG_OLLAMA_URL")

	if v := os.Getenv("CODERAG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("CODERAG_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Index.MaxFileSize = n
		}
	}
}
