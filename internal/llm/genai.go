package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIClient is an alternate provider that serves embeddings from Google's
// Gemini API while delegating chat completions to an inner client. Selected
// with [coderag.embedding] provider = "genai".
type GenAIClient struct {
	chat   Client
	client *genai.Client
	model  string
}

// NewGenAIClient creates the GenAI-backed embedder. chat may be nil when
// the caller only embeds.
func NewGenAIClient(ctx context.Context, apiKey, model string, chat Client) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}
	return &GenAIClient{chat: chat, client: client, model: model}, nil
}

// Available reports whether the provider is usable.
func (c *GenAIClient) Available() bool { return c.client != nil }

// Chat delegates to the inner chat client.
func (c *GenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if c.chat == nil {
		return nil, fmt.Errorf("llm: genai provider has no chat backend")
	}
	return c.chat.Chat(ctx, req)
}

// Embed generates an embedding for a single text.
func (c *GenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("llm: no embeddings returned")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (c *GenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := c.client.Models.EmbedContent(ctx,
		c.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: "CODE_RETRIEVAL_QUERY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("llm: genai embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("llm: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Close exists for symmetry with other providers; the underlying client
// holds no resources that need releasing.
func (c *GenAIClient) Close() error { return nil }
