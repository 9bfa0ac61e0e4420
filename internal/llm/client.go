// Package llm wraps the chat-completion and embedding endpoints the Vault
// depends on. The default client speaks the OpenAI-compatible HTTP surface;
// a GenAI-backed embedder is available as an alternate provider.
package llm

import (
	"context"
	"errors"
)

// ErrNoAPIKey indicates the client was constructed without credentials.
var ErrNoAPIKey = errors.New("llm: API key not configured")

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest parameterises one chat completion.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the completion plus usage accounting.
type ChatResponse struct {
	Content    string
	Model      string
	TokensUsed int
}

// Client is the contract the pipeline components depend on.
type Client interface {
	// Chat performs a completion. The context carries the caller's timeout.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Available reports whether credentials are configured.
	Available() bool
}
