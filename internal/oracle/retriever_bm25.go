package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"vlt/internal/store"
)

// BM25Retriever runs lexical search against the chunk FTS index.
type BM25Retriever struct {
	store     *store.Store
	projectID string
	log       *zap.Logger
}

func NewBM25Retriever(st *store.Store, projectID string, log *zap.Logger) *BM25Retriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &BM25Retriever{store: st, projectID: projectID, log: log}
}

func (r *BM25Retriever) Name() string { return "bm25" }

func (r *BM25Retriever) Available() bool { return r.store != nil }

var ftsTokenRe = regexp.MustCompile(`\w+`)

// sanitizeFTSQuery strips FTS5 operators and joins the remaining terms
// with OR for recall.
func sanitizeFTSQuery(query string) string {
	tokens := ftsTokenRe.FindAllString(query, -1)
	var kept []string
	for _, t := range tokens {
		switch strings.ToUpper(t) {
		case "AND", "OR", "NOT", "NEAR":
			continue
		}
		kept = append(kept, fmt.Sprintf("%q", t))
	}
	return strings.Join(kept, " OR ")
}

func (r *BM25Retriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	match := sanitizeFTSQuery(query)
	if match == "" {
		return nil, nil
	}

	hits, err := r.store.SearchChunksFTS(r.projectID, match, limit)
	if err != nil {
		return nil, &RetrieverError{Retriever: r.Name(), Err: err}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	// FTS ranks are already negated to be positive; normalise by the max
	// so the best hit scores 1.0.
	maxRank := hits[0].Rank
	for _, h := range hits {
		if h.Rank > maxRank {
			maxRank = h.Rank
		}
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		score := 0.0
		if maxRank > 0 {
			score = clampScore(h.Rank / maxRank)
		}
		res := chunkResult(&h.Chunk, MethodBM25, score)
		res.Content = renderChunkSections(&h.Chunk)
		res.TokenCount = estimateTokens(res.Content)
		results = append(results, res)
	}
	return results, nil
}

// renderChunkSections formats a chunk's parts under markdown subheadings.
func renderChunkSections(c *store.CodeChunk) string {
	var b strings.Builder
	if c.Signature != nil {
		fmt.Fprintf(&b, "#### Signature\n%s\n\n", *c.Signature)
	}
	if c.Docstring != nil {
		fmt.Fprintf(&b, "#### Docstring\n%s\n\n", *c.Docstring)
	}
	if len(c.Imports) > 0 {
		fmt.Fprintf(&b, "#### Imports\n%s\n\n", strings.Join(c.Imports, "\n"))
	}
	if c.ClassContext != nil {
		fmt.Fprintf(&b, "#### Class Context\n%s\n\n", *c.ClassContext)
	}
	fmt.Fprintf(&b, "#### Code\n```%s\n%s\n```", c.Language, c.Body)
	return b.String()
}
