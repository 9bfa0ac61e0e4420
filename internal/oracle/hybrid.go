package oracle

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HybridRetrieve fans the query out to every available retriever, merges
// by score, dedupes by source path, and optionally reranks. Each
// retriever gets headroom of 2k results for the merger to pick from.
func HybridRetrieve(ctx context.Context, query string, retrievers []Retriever, k int, reranker *Reranker, log *zap.Logger) []Result {
	if k <= 0 {
		k = 20
	}
	if log == nil {
		log = zap.NewNop()
	}

	available := retrievers[:0:0]
	for _, r := range retrievers {
		if r.Available() {
			available = append(available, r)
		}
	}
	if len(available) == 0 {
		return nil
	}

	// Fixed slots keep the merge order deterministic regardless of which
	// retriever finishes first.
	perRetriever := make([][]Result, len(available))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range available {
		g.Go(func() error {
			results := RetrieveSafe(gctx, r, query, 2*k, log)
			mu.Lock()
			perRetriever[i] = results
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var merged []Result
	for _, results := range perRetriever {
		merged = append(merged, results...)
	}
	sortResults(merged)

	// First occurrence wins after the score sort.
	seen := make(map[string]bool, len(merged))
	deduped := merged[:0]
	for _, r := range merged {
		if seen[r.SourcePath] {
			continue
		}
		seen[r.SourcePath] = true
		deduped = append(deduped, r)
	}

	if reranker != nil && reranker.Available() {
		return reranker.Rerank(ctx, query, deduped, k)
	}
	if len(deduped) > k {
		deduped = deduped[:k]
	}
	return deduped
}
