package oracle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlt/internal/store"
)

func newTestConvManager(t *testing.T, chat *fakeChat) (*ConversationManager, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureProject(store.Project{ID: "proj", Name: "Test"}))

	var m *ConversationManager
	if chat != nil {
		m = NewConversationManager(st, chat, "m", nil)
	} else {
		m = NewConversationManager(st, nil, "m", nil)
	}
	return m, st
}

func TestGetOrCreateResumesActive(t *testing.T) {
	m, _ := newTestConvManager(t, nil)

	c1, err := m.GetOrCreate("proj", "u1")
	require.NoError(t, err)
	assert.Equal(t, defaultTokenBudget, c1.TokenBudget)

	c2, err := m.GetOrCreate("proj", "u1")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)

	// Different user gets a different session.
	c3, err := m.GetOrCreate("proj", "u2")
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c3.ID)
}

func TestLogExchangeAccumulates(t *testing.T) {
	m, st := newTestConvManager(t, nil)
	c, err := m.GetOrCreate("proj", "u1")
	require.NoError(t, err)

	output := "authenticate_user is defined in [src/auth.py:42]. It returns a session token."
	require.NoError(t, m.LogExchange(context.Background(), c, "ask_oracle", "where is authenticate_user defined", output, true))

	got, err := st.GetActiveConversation("proj", "u1", sessionExpiry)
	require.NoError(t, err)
	require.Len(t, got.Exchanges, 1)
	assert.Equal(t, "ask_oracle", got.Exchanges[0].Tool)
	assert.Greater(t, got.TokensUsed, 0)
	assert.Contains(t, got.MentionedSymbols, "authenticate_user")
	assert.Contains(t, got.MentionedFiles, "src/auth.py")
	assert.NotEmpty(t, got.Exchanges[0].Insights)
}

func TestCompressionOnThreshold(t *testing.T) {
	m, st := newTestConvManager(t, nil)
	c, err := m.GetOrCreate("proj", "u1")
	require.NoError(t, err)

	// Ten exchanges at 85% of the budget.
	per := int(0.85*float64(c.TokenBudget)) / 10
	for i := 0; i < 10; i++ {
		c.Exchanges = append(c.Exchanges, store.Exchange{
			Tool:       "ask_oracle",
			Input:      fmt.Sprintf("question %d", i),
			Output:     fmt.Sprintf("answer %d", i),
			Insights:   []string{fmt.Sprintf("fact %d is defined in module %d", i, i)},
			TokenCount: per,
			Timestamp:  time.Now().UTC(),
		})
	}
	c.TokensUsed = per * 10
	c.MentionedSymbols = []string{"AuthService", "login_handler"}
	c.MentionedFiles = []string{"src/auth.py"}
	require.NoError(t, st.UpdateConversation(c))

	require.NoError(t, m.LogExchange(context.Background(), c, "ask_oracle", "one more question", "one more answer", true))

	assert.Len(t, c.Exchanges, recentWindow)
	assert.Equal(t, store.ConversationCompressed, c.Status)
	assert.Equal(t, 1, c.CompressionCount)
	require.NotNil(t, c.CompressedSummary)
	assert.Contains(t, *c.CompressedSummary, "AuthService")
	assert.Contains(t, *c.CompressedSummary, "login_handler")
	assert.Contains(t, *c.CompressedSummary, "src/auth.py")

	wantTokens := estimateTokens(*c.CompressedSummary)
	for _, ex := range c.Exchanges {
		wantTokens += ex.TokenCount
	}
	assert.Equal(t, wantTokens, c.TokensUsed)

	// The compressed state persists.
	got, err := st.GetActiveConversation("proj", "u1", sessionExpiry)
	require.NoError(t, err)
	assert.Equal(t, store.ConversationCompressed, got.Status)
	assert.Len(t, got.Exchanges, recentWindow)
}

func TestCompressionUsesLLMWhenAvailable(t *testing.T) {
	chat := &fakeChat{available: true, reply: "summary keeping AuthService and src/auth.py"}
	m, _ := newTestConvManager(t, chat)
	c, err := m.GetOrCreate("proj", "u1")
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		c.Exchanges = append(c.Exchanges, store.Exchange{Tool: "t", Input: "i", Output: "o", TokenCount: 10})
	}
	c.MentionedSymbols = []string{"AuthService"}
	c.MentionedFiles = []string{"src/auth.py"}

	require.NoError(t, m.Compress(context.Background(), c))
	assert.Equal(t, 1, chat.calls)
	assert.Contains(t, chat.lastReq.Messages[0].Content, "AuthService")
	assert.Equal(t, "summary keeping AuthService and src/auth.py", *c.CompressedSummary)
	assert.Len(t, c.Exchanges, recentWindow)
}

func TestCompressNoopWhenFewExchanges(t *testing.T) {
	m, _ := newTestConvManager(t, nil)
	c, err := m.GetOrCreate("proj", "u1")
	require.NoError(t, err)
	c.Exchanges = []store.Exchange{{Tool: "t", TokenCount: 5}}

	require.NoError(t, m.Compress(context.Background(), c))
	assert.Nil(t, c.CompressedSummary)
	assert.Zero(t, c.CompressionCount)
}

func TestSummarizeOutput(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, summarizeOutput(string(long)), outputSummaryLimit)
	assert.Equal(t, "short", summarizeOutput("short"))
	assert.Equal(t, "the answer", summarizeOutput(map[string]any{"answer": "the answer", "extra": 1}))
	assert.Equal(t, "Returned 3 results", summarizeOutput([]any{1, 2, 3}))
	assert.Contains(t, summarizeOutput(map[string]any{"k": "v"}), `"k":"v"`)
}

func TestExtractInsights(t *testing.T) {
	text := "AuthService is defined in src/auth.py. The weather is nice. It returns a token. Plain filler sentence here."
	insights := extractInsights(text)
	require.Len(t, insights, 2)
	assert.Contains(t, insights[0], "is defined in")
	assert.Contains(t, insights[1], "returns")
}

func TestConversationContext(t *testing.T) {
	m, _ := newTestConvManager(t, nil)
	summary := "earlier we discussed AuthService"
	c := &store.Conversation{
		CompressedSummary: &summary,
		Exchanges: []store.Exchange{{
			Tool: "ask_oracle", Input: "q1", Output: "a1", Insights: []string{"x calls y"},
		}},
	}

	text := m.Context(c, 0)
	assert.Contains(t, text, "## Earlier Context")
	assert.Contains(t, text, "earlier we discussed AuthService")
	assert.Contains(t, text, "## Recent Exchanges")
	assert.Contains(t, text, "### ask_oracle")
	assert.Contains(t, text, "Insights: x calls y")

	truncated := m.Context(c, 10)
	assert.LessOrEqual(t, len(truncated), 10*4+len("\n[… truncated for token budget]"))
	assert.Contains(t, truncated, "truncated for token budget")
}
