package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dshills/coderag/internal/memory"
)

// ProviderOpenAI identifies the OpenAI chat provider.
const ProviderOpenAI = "openai"

// DefaultOpenAIChatModel is used when no model is configured.
const DefaultOpenAIChatModel = openai.GPT4oMini

// OpenAIClient answers chat and completion requests through the OpenAI
// API.
type OpenAIClient struct {
	model       string
	temperature float32
	maxTokens   int
	client      *openai.Client
}

// NewOpenAIClient creates a client for cfg. APIKey is required.
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIChatModel
	}
	return &OpenAIClient{
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		client:      openai.NewClient(cfg.APIKey),
	}, nil
}

// Generate implements Client. A single-prompt completion is a one-message
// chat under the chat completions API.
func (c *OpenAIClient) Generate(ctx context.Context, prompt, system string) (string, error) {
	return c.Chat(ctx, []memory.Message{{Role: memory.RoleUser, Content: prompt}}, system)
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, messages []memory.Message, system string) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrProviderFailed)
	}
	return resp.Choices[0].Message.Content, nil
}

// Model implements Client.
func (c *OpenAIClient) Model() string { return c.model }

// Close implements Client.
func (c *OpenAIClient) Close() error { return nil }
