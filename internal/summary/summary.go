// Package summary maintains lazily generated, incrementally updated
// thread summaries. Summaries are produced on the read path only.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vlt/internal/llm"
	"vlt/internal/store"
)

// EmptyThreadSummary is returned for threads with no nodes.
const EmptyThreadSummary = "No content in this thread yet."

// Staleness describes how far a cached summary lags its thread. A nil
// LastNodeID means the whole thread must be summarised from scratch.
type Staleness struct {
	IsStale      bool
	LastNodeID   *string
	NewNodeCount int
}

// Summarizer generates and caches thread summaries.
type Summarizer struct {
	store *store.Store
	llm   llm.Client
	model string
	log   *zap.Logger
}

func NewSummarizer(st *store.Store, client llm.Client, model string, log *zap.Logger) *Summarizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Summarizer{store: st, llm: client, model: model, log: log}
}

// CheckStaleness compares the cache row against the thread's tail.
func (s *Summarizer) CheckStaleness(threadID string) (Staleness, error) {
	count, err := s.store.CountNodes(threadID)
	if err != nil {
		return Staleness{}, err
	}

	cache, err := s.store.GetSummaryCache(threadID)
	if errors.Is(err, store.ErrNotFound) {
		return Staleness{IsStale: true, NewNodeCount: count}, nil
	}
	if err != nil {
		return Staleness{}, err
	}

	anchor, err := s.store.GetThreadNode(cache.LastNodeID)
	if errors.Is(err, store.ErrNotFound) {
		// The summarised tail vanished; regenerate in full.
		return Staleness{IsStale: true, NewNodeCount: count}, nil
	}
	if err != nil {
		return Staleness{}, err
	}

	latest, err := s.store.LatestNode(threadID)
	if errors.Is(err, store.ErrNotFound) {
		return Staleness{IsStale: true, NewNodeCount: 0}, nil
	}
	if err != nil {
		return Staleness{}, err
	}

	if latest.ID == cache.LastNodeID {
		return Staleness{IsStale: false, LastNodeID: &cache.LastNodeID}, nil
	}
	newCount := 0
	nodes, err := s.store.NodesAfter(threadID, anchor.SequenceID)
	if err != nil {
		return Staleness{}, err
	}
	newCount = len(nodes)
	return Staleness{IsStale: true, LastNodeID: &cache.LastNodeID, NewNodeCount: newCount}, nil
}

// GenerateSummary returns the thread summary, regenerating it when stale.
// With force set, the cache is bypassed and the summary rebuilt in full.
func (s *Summarizer) GenerateSummary(ctx context.Context, threadID string, force bool) (string, error) {
	count, err := s.store.CountNodes(threadID)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return EmptyThreadSummary, nil
	}

	if !force {
		st, err := s.CheckStaleness(threadID)
		if err != nil {
			return "", err
		}
		if !st.IsStale {
			cache, err := s.store.GetSummaryCache(threadID)
			if err != nil {
				return "", err
			}
			return cache.Summary, nil
		}
		if st.LastNodeID != nil {
			return s.incremental(ctx, threadID, *st.LastNodeID)
		}
	}
	return s.full(ctx, threadID)
}

func (s *Summarizer) incremental(ctx context.Context, threadID, lastNodeID string) (string, error) {
	cache, err := s.store.GetSummaryCache(threadID)
	if err != nil {
		return "", err
	}
	anchor, err := s.store.GetThreadNode(lastNodeID)
	if err != nil {
		return "", err
	}
	nodes, err := s.store.NodesAfter(threadID, anchor.SequenceID)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return cache.Summary, nil
	}

	text, tokens, err := s.generate(ctx, cache.Summary, bullets(nodes))
	if err != nil {
		return "", err
	}

	cache.Summary = text
	cache.LastNodeID = nodes[len(nodes)-1].ID
	cache.NodeCount += len(nodes)
	cache.Model = s.model
	cache.TokensUsed = tokens
	if err := s.store.UpsertSummaryCache(cache); err != nil {
		return "", err
	}
	s.log.Debug("incremental summary", zap.String("thread", threadID), zap.Int("new_nodes", len(nodes)))
	return text, nil
}

func (s *Summarizer) full(ctx context.Context, threadID string) (string, error) {
	nodes, err := s.store.GetNodes(threadID)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return EmptyThreadSummary, nil
	}

	text, tokens, err := s.generate(ctx, "", bullets(nodes))
	if err != nil {
		return "", err
	}

	cache := &store.SummaryCache{
		ThreadID:   threadID,
		Summary:    text,
		LastNodeID: nodes[len(nodes)-1].ID,
		NodeCount:  len(nodes),
		Model:      s.model,
		TokensUsed: tokens,
	}
	if err := s.store.UpsertSummaryCache(cache); err != nil {
		return "", err
	}
	s.log.Debug("full summary", zap.String("thread", threadID), zap.Int("nodes", len(nodes)))
	return text, nil
}

// generate calls the chat model with the previous summary as context and
// the new bullets as content to fold in.
func (s *Summarizer) generate(ctx context.Context, prior, newContent string) (string, int, error) {
	var b strings.Builder
	if prior != "" {
		b.WriteString("Existing summary:\n")
		b.WriteString(prior)
		b.WriteString("\n\nNew content:\n")
	} else {
		b.WriteString("Content:\n")
	}
	b.WriteString(newContent)
	b.WriteString("\n\nProduce an updated concise summary of the thread.")

	resp, err := s.llm.Chat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: "You summarise project discussion threads. Keep decisions, open questions, and named symbols."},
			{Role: "user", Content: b.String()},
		},
		Temperature: 0.2,
		MaxTokens:   400,
	})
	if err != nil {
		return "", 0, fmt.Errorf("summary: generate: %w", err)
	}
	return strings.TrimSpace(resp.Content), resp.TokensUsed, nil
}

func bullets(nodes []store.Node) string {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = fmt.Sprintf("- %s: %s", n.Author, n.Content)
	}
	return strings.Join(lines, "\n")
}
