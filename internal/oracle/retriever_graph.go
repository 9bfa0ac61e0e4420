package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vlt/internal/ctags"
	"vlt/internal/store"
)

// GraphRetriever answers structural "where is X defined / who calls X"
// queries from the ctags index and the code graph. Non-structural
// queries yield nothing and the caller falls through to semantic search.
type GraphRetriever struct {
	store     *store.Store
	tags      *ctags.Index
	projectID string
	log       *zap.Logger
}

func NewGraphRetriever(st *store.Store, tags *ctags.Index, projectID string, log *zap.Logger) *GraphRetriever {
	if log == nil {
		log = zap.NewNop()
	}
	return &GraphRetriever{store: st, tags: tags, projectID: projectID, log: log}
}

func (r *GraphRetriever) Name() string { return "graph" }

func (r *GraphRetriever) Available() bool { return r.store != nil }

func (r *GraphRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	analysis := Analyze(query)
	if len(analysis.Symbols) == 0 {
		return nil, nil
	}
	symbol := analysis.Symbols[0]

	switch analysis.Type {
	case QueryDefinition:
		return r.definitions(symbol, limit)
	case QueryReferences:
		return r.references(symbol, limit)
	}
	return nil, nil
}

// definitions consults the ctags index first, then the code graph.
func (r *GraphRetriever) definitions(symbol string, limit int) ([]Result, error) {
	var results []Result

	if r.tags != nil {
		for _, def := range r.tags.Lookup(symbol) {
			content := fmt.Sprintf("%s %s defined at %s:%d", def.Kind, def.Name, def.FilePath, def.Line)
			if def.Signature != nil {
				content += "\n" + def.Name + *def.Signature
			}
			results = append(results, Result{
				Content:    content,
				SourceType: SourceDefinition,
				SourcePath: fmt.Sprintf("%s:%d", def.FilePath, def.Line),
				Method:     MethodCtags,
				Score:      1.0,
				TokenCount: estimateTokens(content),
				Metadata:   map[string]string{"symbol": def.Name, "kind": def.Kind},
			})
			if len(results) >= limit {
				return results, nil
			}
		}
	}
	if len(results) > 0 {
		return results, nil
	}

	nodes, err := r.store.FindNodesByName(r.projectID, symbol, limit)
	if err != nil {
		return nil, &RetrieverError{Retriever: r.Name(), Err: err}
	}
	for _, n := range nodes {
		line := 0
		if n.Line != nil {
			line = *n.Line
		}
		content := fmt.Sprintf("%s %s defined at %s:%d", n.Kind, n.ID, n.FilePath, line)
		if n.Signature != nil {
			content += "\n" + *n.Signature
		}
		if n.Docstring != nil {
			content += "\n" + *n.Docstring
		}
		results = append(results, Result{
			Content:    content,
			SourceType: SourceDefinition,
			SourcePath: fmt.Sprintf("%s:%d", n.FilePath, line),
			Method:     MethodGraph,
			Score:      1.0,
			TokenCount: estimateTokens(content),
			Metadata:   map[string]string{"symbol": n.Name, "kind": n.Kind},
		})
	}
	return results, nil
}

// references materialises call sites from edges targeting the symbol.
func (r *GraphRetriever) references(symbol string, limit int) ([]Result, error) {
	edges, err := r.store.EdgesByTarget(r.projectID, symbol, limit)
	if err != nil {
		return nil, &RetrieverError{Retriever: r.Name(), Err: err}
	}

	var results []Result
	for _, e := range edges {
		source, err := r.store.GetNode(r.projectID, e.SourceID)
		path := e.SourceID
		line := 0
		if err == nil {
			line = 0
			if source.Line != nil {
				line = *source.Line
			}
			path = source.FilePath
		}
		if e.Line != nil {
			line = *e.Line
		}
		content := fmt.Sprintf("%s %s %s (%d time(s)) at %s:%d", e.SourceID, e.Kind, symbol, e.Count, path, line)
		results = append(results, Result{
			Content:    content,
			SourceType: SourceReference,
			SourcePath: fmt.Sprintf("%s:%d", path, line),
			Method:     MethodGraph,
			Score:      1.0,
			TokenCount: estimateTokens(content),
			Metadata:   map[string]string{"symbol": symbol, "caller": e.SourceID},
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
