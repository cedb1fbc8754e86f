package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dshills/coderag/internal/memory"
)

// ProviderOllama identifies the Ollama chat provider.
const ProviderOllama = "ollama"

// DefaultOllamaChatModel is used when no model is configured.
const DefaultOllamaChatModel = "codellama:7b"

const ollamaRequestTimeout = 120 * time.Second

// OllamaClient talks to a local Ollama server's generate and chat APIs.
type OllamaClient struct {
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// NewOllamaClient creates a client for cfg. Model and BaseURL fall back to
// defaults when empty.
func NewOllamaClient(cfg Config) *OllamaClient {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaChatModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: ollamaRequestTimeout},
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

// Generate implements Client.
func (c *OllamaClient) Generate(ctx context.Context, prompt, system string) (string, error) {
	req := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}
	var resp ollamaGenerateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Chat implements Client.
func (c *OllamaClient) Chat(ctx context.Context, messages []memory.Message, system string) (string, error) {
	var msgs []ollamaChatMessage
	if system != "" {
		msgs = append(msgs, ollamaChatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		msgs = append(msgs, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}

	req := ollamaChatRequest{
		Model:    c.model,
		Messages: msgs,
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}
	var resp ollamaChatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Model implements Client.
func (c *OllamaClient) Model() string { return c.model }

// Close implements Client.
func (c *OllamaClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrProviderFailed, resp.StatusCode, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response: %v", ErrProviderFailed, err)
	}
	return nil
}
