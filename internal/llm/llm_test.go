package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/coderag/internal/memory"
)

func TestNewFactory(t *testing.T) {
	client, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaChatModel, client.Model(), "empty provider defaults to ollama")
	require.NoError(t, client.Close())

	client, err = New(Config{Provider: ProviderOllama, Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "llama3", client.Model())
	require.NoError(t, client.Close())

	_, err = New(Config{Provider: "bedrock"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestOllamaGenerate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "the chunker splits files"})
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{
		Model:       "codellama:13b",
		BaseURL:     srv.URL,
		Temperature: 0.3,
		MaxTokens:   512,
	})
	defer client.Close()

	out, err := client.Generate(context.Background(), "how are files chunked?", "answer briefly")
	require.NoError(t, err)
	assert.Equal(t, "the chunker splits files", out)

	assert.Equal(t, "codellama:13b", got.Model)
	assert.Equal(t, "how are files chunked?", got.Prompt)
	assert.Equal(t, "answer briefly", got.System)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.3, got.Options.Temperature)
	assert.Equal(t, 512, got.Options.NumPredict)
}

func TestOllamaChat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: "reply"},
		})
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{BaseURL: srv.URL})
	defer client.Close()

	history := []memory.Message{
		{Role: memory.RoleUser, Content: "first question"},
		{Role: memory.RoleAssistant, Content: "first answer"},
		{Role: memory.RoleUser, Content: "follow-up"},
	}
	out, err := client.Chat(context.Background(), history, "be terse")
	require.NoError(t, err)
	assert.Equal(t, "reply", out)

	require.Len(t, got.Messages, 4, "system message prepended")
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "be terse", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "assistant", got.Messages[2].Role)
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{BaseURL: srv.URL})
	defer client.Close()

	_, err := client.Generate(context.Background(), "prompt", "")
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{BaseURL: srv.URL})
	defer client.Close()

	_, err := client.Generate(context.Background(), "prompt", "")
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestOllamaContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewOllamaClient(Config{BaseURL: srv.URL})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Generate(ctx, "prompt", "")
	assert.Error(t, err)
}
