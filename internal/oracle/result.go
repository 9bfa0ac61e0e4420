// Package oracle implements the multi-source retrieval and synthesis
// pipeline: retrievers, reranking, context assembly, conversation
// tracking, and the top-level query orchestrator.
package oracle

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// SourceType categorises where a retrieval result came from.
type SourceType string

const (
	SourceCode       SourceType = "code"
	SourceVault      SourceType = "vault"
	SourceThread     SourceType = "thread"
	SourceDefinition SourceType = "definition"
	SourceReference  SourceType = "reference"
)

// Method is how a result was found.
type Method string

const (
	MethodVector Method = "vector"
	MethodBM25   Method = "bm25"
	MethodGraph  Method = "graph"
	MethodCtags  Method = "ctags"
	MethodSCIP   Method = "scip"
)

// Result is one retrieval hit. Scores are normalised to [0,1].
type Result struct {
	Content    string
	SourceType SourceType
	SourcePath string
	Method     Method
	Score      float64
	TokenCount int
	Metadata   map[string]string
}

// Retriever is the minimal capability every source implements.
type Retriever interface {
	Name() string
	Available() bool
	Retrieve(ctx context.Context, query string, limit int) ([]Result, error)
}

// ErrNotAvailable signals a missing prerequisite (no API key, no index).
var ErrNotAvailable = fmt.Errorf("oracle: retriever not available")

// RetrieverError wraps a runtime failure in a named retriever.
type RetrieverError struct {
	Retriever string
	Err       error
}

func (e *RetrieverError) Error() string {
	return fmt.Sprintf("oracle: retriever %s: %v", e.Retriever, e.Err)
}

func (e *RetrieverError) Unwrap() error { return e.Err }

// RetrieveSafe runs a retriever and degrades any failure to an empty
// list. One source must never sink the whole query.
func RetrieveSafe(ctx context.Context, r Retriever, query string, limit int, log *zap.Logger) []Result {
	if !r.Available() {
		return nil
	}
	results, err := r.Retrieve(ctx, query, limit)
	if err != nil {
		if log != nil {
			log.Warn("retriever failed", zap.String("retriever", r.Name()), zap.Error(err))
		}
		return nil
	}
	return results
}

// estimateTokens is the shared 4-chars-per-token heuristic.
func estimateTokens(text string) int {
	return len(text) / 4
}

// clampScore folds a similarity into [0,1].
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// sortResults orders by score descending with source path as the
// deterministic tie-break.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].SourcePath < results[j].SourcePath
	})
}
