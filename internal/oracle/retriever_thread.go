package oracle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vlt/internal/llm"
	"vlt/internal/store"
	"vlt/internal/summary"
	"vlt/internal/vector"
)

// ThreadRetriever searches thread nodes by embedding similarity. Matched
// threads get their lazy summary refreshed as a best-effort side effect.
type ThreadRetriever struct {
	store      *store.Store
	embedder   llm.Client
	summarizer *summary.Summarizer
	projectID  string
	log        *zap.Logger
}

func NewThreadRetriever(st *store.Store, embedder llm.Client, summarizer *summary.Summarizer, projectID string, log *zap.Logger) *ThreadRetriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &ThreadRetriever{store: st, embedder: embedder, summarizer: summarizer, projectID: projectID, log: log}
}

func (r *ThreadRetriever) Name() string { return "threads" }

func (r *ThreadRetriever) Available() bool {
	return r.embedder != nil && r.embedder.Available()
}

func (r *ThreadRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if !r.Available() {
		return nil, &RetrieverError{Retriever: r.Name(), Err: ErrNotAvailable}
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrieverError{Retriever: r.Name(), Err: err}
	}
	queryVec := vector.Normalize(embedding)

	embedded, err := r.store.NodesWithEmbeddings(r.projectID)
	if err != nil {
		return nil, &RetrieverError{Retriever: r.Name(), Err: err}
	}
	byID := make(map[string]store.EmbeddedNode, len(embedded))
	candidates := make([]vector.Candidate, len(embedded))
	for i, n := range embedded {
		byID[n.NodeID] = n
		candidates[i] = vector.Candidate{ID: n.NodeID, Embedding: n.Embedding}
	}

	matches := vector.SearchMemory(queryVec, candidates, limit)
	threads := make(map[string]bool)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		node, err := r.store.GetThreadNode(m.ID)
		if err != nil {
			continue
		}
		meta := map[string]string{
			"author": node.Author,
			"date":   node.CreatedAt.Format("2006-01-02"),
		}
		results = append(results, Result{
			Content:    node.Content,
			SourceType: SourceThread,
			SourcePath: fmt.Sprintf("thread:%s#%d", node.ThreadID, node.SequenceID),
			Method:     MethodVector,
			Score:      clampScore(m.Score),
			TokenCount: estimateTokens(node.Content),
			Metadata:   meta,
		})
		threads[node.ThreadID] = true
	}

	r.refreshSummaries(threads)
	return results, nil
}

// refreshSummaries warms the summary cache for matched threads. Failures
// only log; retrieval results are already in hand.
func (r *ThreadRetriever) refreshSummaries(threads map[string]bool) {
	if r.summarizer == nil {
		return
	}
	for threadID := range threads {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := r.summarizer.GenerateSummary(ctx, threadID, false); err != nil {
			r.log.Debug("summary refresh failed", zap.String("thread", threadID), zap.Error(err))
		}
		cancel()
	}
}
