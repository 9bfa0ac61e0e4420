package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"vlt/internal/llm"
	"vlt/internal/store"
)

const (
	defaultTokenBudget   = 16000
	compressionThreshold = 0.80
	recentWindow         = 5
	sessionExpiry        = 24 * time.Hour
	compressTimeout      = 30 * time.Second
	outputSummaryLimit   = 500
	maxMentionedSymbols  = 100
	maxMentionedFiles    = 50
	maxInsights          = 5
)

// ConversationManager maintains per (project, user) Oracle sessions with
// automatic compression when the token budget runs hot.
type ConversationManager struct {
	store *store.Store
	llm   llm.Client
	model string
	log   *zap.Logger
}

func NewConversationManager(st *store.Store, client llm.Client, model string, log *zap.Logger) *ConversationManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConversationManager{store: st, llm: client, model: model, log: log}
}

// GetOrCreate resumes the active session when its last activity falls
// within the expiry window, otherwise starts a fresh one.
func (m *ConversationManager) GetOrCreate(projectID, userID string) (*store.Conversation, error) {
	c, err := m.store.GetActiveConversation(projectID, userID, sessionExpiry)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return m.store.CreateConversation(projectID, userID, defaultTokenBudget, sessionExpiry)
}

// LogExchange records one tool invocation, updates the mention sets, and
// compresses the session when usage crosses the threshold.
func (m *ConversationManager) LogExchange(ctx context.Context, c *store.Conversation, tool string, input string, output any, autoCompress bool) error {
	summary := summarizeOutput(output)
	insights := extractInsights(summary)
	symbols := extractSymbols(input + " " + summary)
	files := extractFilePaths(input + " " + summary)

	tokens := estimateTokens(tool + input + summary + strings.Join(insights, " "))
	ex := store.Exchange{
		Tool:       tool,
		Input:      truncate(input, outputSummaryLimit),
		Output:     summary,
		Insights:   insights,
		TokenCount: tokens,
		Timestamp:  time.Now().UTC(),
	}
	c.Exchanges = append(c.Exchanges, ex)
	c.TokensUsed += tokens
	c.LastActivity = ex.Timestamp
	c.MentionedSymbols = mergeCapped(c.MentionedSymbols, symbols, maxMentionedSymbols)
	c.MentionedFiles = mergeCapped(c.MentionedFiles, files, maxMentionedFiles)

	if autoCompress && float64(c.TokensUsed) > compressionThreshold*float64(c.TokenBudget) {
		if err := m.Compress(ctx, c); err != nil {
			return err
		}
	}
	return m.store.UpdateConversation(c)
}

// Compress folds everything but the last five exchanges into the
// compressed summary. The summary must keep every mentioned symbol and
// file; without a usable LLM a deterministic concatenation is used.
func (m *ConversationManager) Compress(ctx context.Context, c *store.Conversation) error {
	if len(c.Exchanges) <= recentWindow {
		return nil
	}
	older := c.Exchanges[:len(c.Exchanges)-recentWindow]
	recent := c.Exchanges[len(c.Exchanges)-recentWindow:]

	summary, err := m.compressViaLLM(ctx, c, older)
	if err != nil {
		m.log.Debug("llm compression unavailable, using deterministic fallback", zap.Error(err))
		summary = m.compressFallback(c, older)
	}

	kept := make([]store.Exchange, len(recent))
	copy(kept, recent)
	c.CompressedSummary = &summary
	c.Exchanges = kept
	c.TokensUsed = estimateTokens(summary)
	for _, ex := range kept {
		c.TokensUsed += ex.TokenCount
	}
	c.CompressionCount++
	c.Status = store.ConversationCompressed
	return nil
}

func (m *ConversationManager) compressViaLLM(ctx context.Context, c *store.Conversation, older []store.Exchange) (string, error) {
	if m.llm == nil || !m.llm.Available() {
		return "", fmt.Errorf("no chat client")
	}
	ctx, cancel := context.WithTimeout(ctx, compressTimeout)
	defer cancel()

	var b strings.Builder
	if c.CompressedSummary != nil {
		fmt.Fprintf(&b, "Existing summary:\n%s\n\n", *c.CompressedSummary)
	}
	b.WriteString("Exchanges to fold in:\n")
	for _, ex := range older {
		fmt.Fprintf(&b, "- [%s] in: %s | out: %s\n", ex.Tool, ex.Input, ex.Output)
	}
	fmt.Fprintf(&b, "\nSummarise the conversation so far. You must preserve every one of these symbols: %s. And every one of these files: %s.",
		strings.Join(c.MentionedSymbols, ", "), strings.Join(c.MentionedFiles, ", "))

	resp, err := m.llm.Chat(ctx, llm.ChatRequest{
		Model: m.model,
		Messages: []llm.Message{
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.2,
		MaxTokens:   600,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (m *ConversationManager) compressFallback(c *store.Conversation, older []store.Exchange) string {
	var b strings.Builder
	if c.CompressedSummary != nil {
		b.WriteString(*c.CompressedSummary)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Earlier exchanges: %d.\n", len(older))
	if len(c.MentionedSymbols) > 0 {
		fmt.Fprintf(&b, "Symbols discussed: %s.\n", strings.Join(c.MentionedSymbols, ", "))
	}
	if len(c.MentionedFiles) > 0 {
		fmt.Fprintf(&b, "Files discussed: %s.\n", strings.Join(c.MentionedFiles, ", "))
	}
	count := 0
	for _, ex := range older {
		for _, insight := range ex.Insights {
			if count >= 10 {
				break
			}
			b.WriteString("- " + insight + "\n")
			count++
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Context renders the conversation as a markdown block for the synthesis
// prompt, proportionally truncated to maxTokens when set.
func (m *ConversationManager) Context(c *store.Conversation, maxTokens int) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	if c.CompressedSummary != nil && *c.CompressedSummary != "" {
		b.WriteString("## Earlier Context\n\n")
		b.WriteString(*c.CompressedSummary)
		b.WriteString("\n\n")
	}
	if len(c.Exchanges) > 0 {
		b.WriteString("## Recent Exchanges\n")
		for _, ex := range c.Exchanges {
			fmt.Fprintf(&b, "\n### %s\nInput: %s\nOutput: %s\n", ex.Tool, ex.Input, ex.Output)
			if len(ex.Insights) > 0 {
				fmt.Fprintf(&b, "Insights: %s\n", strings.Join(ex.Insights, "; "))
			}
		}
	}

	text := strings.TrimSpace(b.String())
	if maxTokens > 0 && estimateTokens(text) > maxTokens {
		limit := maxTokens * 4
		if limit < len(text) {
			text = text[:limit] + "\n[… truncated for token budget]"
		}
	}
	return text
}

// summarizeOutput normalises an arbitrary tool output into a short
// string: strings truncate, maps prefer their "answer" field, lists
// collapse to a count.
func summarizeOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return truncate(v, outputSummaryLimit)
	case map[string]any:
		if answer, ok := v["answer"].(string); ok {
			return truncate(answer, outputSummaryLimit)
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return truncate(string(raw), outputSummaryLimit)
	case []any:
		return fmt.Sprintf("Returned %d results", len(v))
	default:
		return truncate(fmt.Sprintf("%v", v), outputSummaryLimit)
	}
}

var insightPhrases = []string{
	"is defined in", "implements", "calls", "returns", "responsible for",
	"depends on", "inherits from", "is used by", "configured in",
}

var sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

// extractInsights keeps up to five sentences matching the high-signal
// phrase list.
func extractInsights(text string) []string {
	var insights []string
	for _, raw := range sentenceRe.FindAllString(text, -1) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, phrase := range insightPhrases {
			if strings.Contains(lower, phrase) {
				insights = append(insights, sentence)
				break
			}
		}
		if len(insights) >= maxInsights {
			break
		}
	}
	return insights
}

var (
	mentionSymbolRe = regexp.MustCompile(`\b([A-Z][a-z0-9]+(?:[A-Z]\w*)*|[a-z][a-z0-9]*(?:_\w+)+|[a-z]+[A-Z]\w*)\b`)
	filePathRe      = regexp.MustCompile(`\b[\w./-]+\.(?:py|go|ts|tsx|js|jsx|md|toml|yaml|yml|json)\b`)

	mentionStopWords = map[string]bool{
		"The": true, "This": true, "That": true, "These": true, "Those": true,
		"What": true, "Where": true, "When": true, "Which": true, "How": true,
		"Returned": true, "Error": true, "Input": true, "Output": true,
	}
)

func extractSymbols(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range mentionSymbolRe.FindAllString(text, -1) {
		if mentionStopWords[m] || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

func extractFilePaths(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range filePathRe.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	// Citation captures may carry line suffixes worth keeping as paths.
	for _, c := range ExtractCitations(text) {
		path := c
		if idx := strings.IndexByte(path, ':'); idx > 0 {
			path = path[:idx]
		}
		if strings.HasPrefix(path, "thread") || seen[path] {
			continue
		}
		if strings.ContainsAny(path, "./") {
			seen[path] = true
			out = append(out, path)
		}
	}
	return out
}

func mergeCapped(existing, extra []string, limit int) []string {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range extra {
		if len(existing) >= limit {
			break
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		existing = append(existing, s)
	}
	return existing
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
