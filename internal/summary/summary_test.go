package summary

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlt/internal/llm"
	"vlt/internal/store"
)

type fakeLLM struct {
	calls []llm.ChatRequest
	reply string
}

func (f *fakeLLM) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.calls = append(f.calls, req)
	return &llm.ChatResponse{Content: f.reply, Model: req.Model, TokensUsed: 10}, nil
}

func (f *fakeLLM) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeLLM) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeLLM) Available() bool { return true }

func newTestSummarizer(t *testing.T) (*Summarizer, *store.Store, *fakeLLM) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureProject(store.Project{ID: "proj", Name: "Test"}))

	client := &fakeLLM{reply: "summary v1"}
	return NewSummarizer(st, client, "test-model", nil), st, client
}

func TestEmptyThread(t *testing.T) {
	s, st, client := newTestSummarizer(t)
	th, err := st.CreateThread("proj")
	require.NoError(t, err)

	text, err := s.GenerateSummary(context.Background(), th.ID, false)
	require.NoError(t, err)
	assert.Equal(t, EmptyThreadSummary, text)
	assert.Empty(t, client.calls)
}

func TestLazyIncremental(t *testing.T) {
	s, st, client := newTestSummarizer(t)
	th, err := st.CreateThread("proj")
	require.NoError(t, err)

	contents := []string{"decided on sqlite", "added fts index", "renamed auth module", "fixed login bug", "shipped v1"}
	for _, c := range contents {
		_, err := st.AppendNode(th.ID, c, "alice")
		require.NoError(t, err)
	}

	// First read: one LLM call, empty context, all five bullets.
	text, err := s.GenerateSummary(context.Background(), th.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary v1", text)
	require.Len(t, client.calls, 1)
	prompt := client.calls[0].Messages[1].Content
	assert.NotContains(t, prompt, "Existing summary:")
	for _, c := range contents {
		assert.Contains(t, prompt, c)
	}

	// Fresh cache: a second read is free.
	text, err = s.GenerateSummary(context.Background(), th.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary v1", text)
	require.Len(t, client.calls, 1)

	// Two appends happen without any summarisation.
	_, err = st.AppendNode(th.ID, "started delta queue", "bob")
	require.NoError(t, err)
	_, err = st.AppendNode(th.ID, "wired jit indexing", "bob")
	require.NoError(t, err)
	require.Len(t, client.calls, 1)

	// Second read: one incremental call, previous summary as context,
	// only the two new bullets.
	client.reply = "summary v2"
	text, err = s.GenerateSummary(context.Background(), th.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "summary v2", text)
	require.Len(t, client.calls, 2)
	prompt = client.calls[1].Messages[1].Content
	assert.Contains(t, prompt, "Existing summary:\nsummary v1")
	assert.Contains(t, prompt, "started delta queue")
	assert.Contains(t, prompt, "wired jit indexing")
	for _, c := range contents {
		assert.NotContains(t, prompt, c)
	}

	cache, err := st.GetSummaryCache(th.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, cache.NodeCount)
	assert.Equal(t, "summary v2", cache.Summary)
}

func TestCheckStaleness(t *testing.T) {
	s, st, _ := newTestSummarizer(t)
	th, err := st.CreateThread("proj")
	require.NoError(t, err)
	n1, err := st.AppendNode(th.ID, "one", "a")
	require.NoError(t, err)
	_, err = st.AppendNode(th.ID, "two", "a")
	require.NoError(t, err)

	// No cache row yet.
	stale, err := s.CheckStaleness(th.ID)
	require.NoError(t, err)
	assert.True(t, stale.IsStale)
	assert.Nil(t, stale.LastNodeID)
	assert.Equal(t, 2, stale.NewNodeCount)

	// Cache anchored at node one: one new node.
	require.NoError(t, st.UpsertSummaryCache(&store.SummaryCache{
		ThreadID: th.ID, Summary: "s", LastNodeID: n1.ID, NodeCount: 1, Model: "m",
	}))
	stale, err = s.CheckStaleness(th.ID)
	require.NoError(t, err)
	assert.True(t, stale.IsStale)
	require.NotNil(t, stale.LastNodeID)
	assert.Equal(t, n1.ID, *stale.LastNodeID)
	assert.Equal(t, 1, stale.NewNodeCount)

	// Anchor node missing: full regeneration.
	require.NoError(t, st.UpsertSummaryCache(&store.SummaryCache{
		ThreadID: th.ID, Summary: "s", LastNodeID: "gone", NodeCount: 1, Model: "m",
	}))
	stale, err = s.CheckStaleness(th.ID)
	require.NoError(t, err)
	assert.True(t, stale.IsStale)
	assert.Nil(t, stale.LastNodeID)
	assert.Equal(t, 2, stale.NewNodeCount)
}

func TestForceRegenerates(t *testing.T) {
	s, st, client := newTestSummarizer(t)
	th, err := st.CreateThread("proj")
	require.NoError(t, err)
	_, err = st.AppendNode(th.ID, "one", "a")
	require.NoError(t, err)

	_, err = s.GenerateSummary(context.Background(), th.ID, false)
	require.NoError(t, err)
	require.Len(t, client.calls, 1)

	_, err = s.GenerateSummary(context.Background(), th.ID, true)
	require.NoError(t, err)
	require.Len(t, client.calls, 2)
	assert.NotContains(t, client.calls[1].Messages[1].Content, "Existing summary:")
}
