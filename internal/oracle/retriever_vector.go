package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vlt/internal/llm"
	"vlt/internal/store"
	"vlt/internal/vector"
)

// VectorRetriever ranks code chunks by embedding similarity.
type VectorRetriever struct {
	store     *store.Store
	embedder  llm.Client
	projectID string
	log       *zap.Logger
}

func NewVectorRetriever(st *store.Store, embedder llm.Client, projectID string, log *zap.Logger) *VectorRetriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &VectorRetriever{store: st, embedder: embedder, projectID: projectID, log: log}
}

func (r *VectorRetriever) Name() string { return "vector" }

func (r *VectorRetriever) Available() bool {
	return r.embedder != nil && r.embedder.Available()
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if !r.Available() {
		return nil, &RetrieverError{Retriever: r.Name(), Err: ErrNotAvailable}
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrieverError{Retriever: r.Name(), Err: err}
	}
	queryVec := vector.Normalize(embedding)

	embedded, err := r.store.ChunksWithEmbeddings(r.projectID)
	if err != nil {
		return nil, &RetrieverError{Retriever: r.Name(), Err: err}
	}
	candidates := make([]vector.Candidate, len(embedded))
	for i, e := range embedded {
		candidates[i] = vector.Candidate{ID: e.ID, Embedding: e.Embedding}
	}

	matches := vector.SearchMemory(queryVec, candidates, limit)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		chunk, err := r.store.GetChunk(m.ID)
		if err != nil {
			r.log.Debug("chunk vanished during search", zap.String("id", m.ID))
			continue
		}
		results = append(results, chunkResult(chunk, MethodVector, clampScore(m.Score)))
	}
	return results, nil
}

// chunkResult renders a chunk as a retrieval result with a short header.
func chunkResult(c *store.CodeChunk, method Method, score float64) Result {
	content := c.Body
	meta := map[string]string{
		"language":       c.Language,
		"qualified_name": c.QualifiedName,
		"kind":           string(c.Kind),
	}
	return Result{
		Content:    content,
		SourceType: SourceCode,
		SourcePath: fmt.Sprintf("%s:%d", c.FilePath, c.StartLine),
		Method:     method,
		Score:      score,
		TokenCount: estimateTokens(content),
		Metadata:   meta,
	}
}
