package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"vlt/internal/llm"
)

const (
	rerankTimeout       = 30 * time.Second
	rerankMaxTokens     = 500
	rerankContentLength = 300
)

// Reranker reorders merged candidates by LLM judgement. Any failure
// falls back to the plain score sort.
type Reranker struct {
	llm   llm.Client
	model string
	log   *zap.Logger
}

func NewReranker(client llm.Client, model string, log *zap.Logger) *Reranker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reranker{llm: client, model: model, log: log}
}

// Available reports whether LLM reranking can run at all.
func (r *Reranker) Available() bool {
	return r.llm != nil && r.llm.Available()
}

// Rerank returns the k best candidates. LLM scores replace the retriever
// scores; on any failure the input ordering (score desc) is kept.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Result, k int) []Result {
	if !r.Available() || len(candidates) <= k {
		return fallbackSort(candidates, k)
	}

	scores, err := r.judge(ctx, query, candidates)
	if err != nil {
		r.log.Warn("rerank failed, falling back to score sort", zap.Error(err))
		return fallbackSort(candidates, k)
	}

	reranked := make([]Result, len(candidates))
	copy(reranked, candidates)
	for i := range reranked {
		reranked[i].Score = scores[i] / 10.0
	}
	sortResults(reranked)
	if len(reranked) > k {
		reranked = reranked[:k]
	}
	return reranked
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*?\]`)

func (r *Reranker) judge(ctx context.Context, query string, candidates []Result) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, rerankTimeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "Rate how relevant each candidate is to the question.\n\nQuestion: %s\n\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&b, "Candidate %d [%s, %s]:\n%s\n\n",
			i+1, c.SourcePath, c.SourceType, truncateRunes(c.Content, rerankContentLength))
	}
	b.WriteString("Respond with only a JSON array of scores 0..10 in order, one per candidate.")

	resp, err := r.llm.Chat(ctx, llm.ChatRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "user", Content: b.String()},
		},
		Temperature: 0,
		MaxTokens:   rerankMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	raw := jsonArrayRe.FindString(resp.Content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON array in rerank response")
	}
	var scores []float64
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("decode rerank scores: %w", err)
	}

	// Clamp to [0,10] and pad or truncate to the candidate count.
	out := make([]float64, len(candidates))
	for i := range out {
		if i < len(scores) {
			s := scores[i]
			if s < 0 {
				s = 0
			}
			if s > 10 {
				s = 10
			}
			out[i] = s
		}
	}
	return out, nil
}

// truncateRunes cuts to n characters on a rune boundary so multi-byte
// content never yields an invalid UTF-8 prompt.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func fallbackSort(candidates []Result, k int) []Result {
	out := make([]Result, len(candidates))
	copy(out, candidates)
	sortResults(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
