package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenAIClientRequiresKey(t *testing.T) {
	_, err := NewGenAIClient(context.Background(), "", "gemini-embedding-001", nil)
	require.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGenAIClientCloseIsNoop(t *testing.T) {
	c := &GenAIClient{}
	assert.NoError(t, c.Close())
	assert.False(t, c.Available())
}

func TestGenAIClientChatNeedsBackend(t *testing.T) {
	c := &GenAIClient{}
	_, err := c.Chat(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)

	inner := &staticChat{reply: "ok"}
	c = &GenAIClient{chat: inner}
	resp, err := c.Chat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

type staticChat struct{ reply string }

func (s *staticChat) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: s.reply}, nil
}

func (s *staticChat) Embed(context.Context, string) ([]float32, error) { return nil, nil }

func (s *staticChat) EmbedBatch(context.Context, []string) ([][]float32, error) { return nil, nil }

func (s *staticChat) Available() bool { return true }
