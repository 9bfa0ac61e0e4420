package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vlt/internal/config"
	"vlt/internal/ctags"
	"vlt/internal/delta"
	"vlt/internal/llm"
	"vlt/internal/store"
	"vlt/internal/summary"
)

const (
	synthesisTimeout   = 60 * time.Second
	synthesisTemp      = 0.3
	synthesisMaxTokens = 4000
	defaultTopK        = 20
	maxSources         = 10

	noContextAnswer = "I could not find any relevant information in the indexed code, documentation, or discussion history to answer this question. Try indexing the project first, or rephrase the question."
)

// Deps wires the orchestrator's collaborators. Store and Config are
// required; everything else degrades gracefully when absent.
type Deps struct {
	Store      *store.Store
	Chat       llm.Client
	Embedder   llm.Client
	Config     *config.Config
	Settings   config.Settings
	Tags       *ctags.Index
	Summarizer *summary.Summarizer
	Delta      *delta.Manager
	Log        *zap.Logger

	// Retrievers overrides the default set. Used by tests.
	Retrievers []Retriever
}

// Oracle is the top-level query pipeline.
type Oracle struct {
	deps     Deps
	reranker *Reranker
	conv     *ConversationManager
	log      *zap.Logger
}

func New(deps Deps) *Oracle {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Oracle{
		deps:     deps,
		reranker: NewReranker(deps.Chat, deps.Config.Oracle.RerankModel, log),
		conv:     NewConversationManager(deps.Store, deps.Chat, deps.Config.Oracle.SynthesisModel, log),
		log:      log,
	}
}

// QueryOptions tune a single query.
type QueryOptions struct {
	Sources          []string
	Explain          bool
	MaxContextTokens int
	IncludeRepoMap   bool
	UserID           string
	UseConversation  bool
}

// Source is one entry of the response's source list.
type Source struct {
	Path   string     `json:"path"`
	Type   SourceType `json:"type"`
	Method Method     `json:"method"`
	Score  float64    `json:"score"`
}

// Response is the structured answer of one Oracle query.
type Response struct {
	Answer       string         `json:"answer"`
	Sources      []Source       `json:"sources"`
	Citations    []string       `json:"citations,omitempty"`
	RepoMapSlice string         `json:"repo_map_slice,omitempty"`
	Traces       map[string]any `json:"traces,omitempty"`
	QueryType    QueryType      `json:"query_type"`
	Model        string         `json:"model"`
	TokensUsed   int            `json:"tokens_used"`
	CostCents    float64        `json:"cost_cents"`
	DurationMS   int64          `json:"duration_ms"`
}

// Query runs the full pipeline: analyse, JIT-index, retrieve, assemble,
// synthesise, and log the exchange.
func (o *Oracle) Query(ctx context.Context, question string, opts QueryOptions) (*Response, error) {
	start := time.Now()
	phases := make(map[string]int64)
	maxContext := opts.MaxContextTokens
	if maxContext <= 0 {
		maxContext = o.deps.Config.Oracle.MaxContextTokens
	}
	if maxContext <= 0 {
		maxContext = 16000
	}

	var conv *store.Conversation
	convContext := ""
	if opts.UseConversation && opts.UserID != "" {
		var err error
		conv, err = o.conv.GetOrCreate(o.projectID(), opts.UserID)
		if err != nil {
			return nil, err
		}
		convContext = o.conv.Context(conv, maxContext/4)
	}

	analysis := Analyze(question)
	o.log.Info("query analysed",
		zap.String("type", string(analysis.Type)),
		zap.Float64("confidence", analysis.Confidence))

	// Files the query names jump the indexing queue before retrieval.
	if o.deps.Delta != nil {
		if matched, err := o.deps.Delta.PromoteForQuery(question); err == nil && len(matched) > 0 {
			if _, err := o.deps.Delta.CommitFiles(ctx, matched); err != nil {
				o.log.Warn("jit commit failed", zap.Error(err))
			}
		}
	}
	phases["prepare_ms"] = time.Since(start).Milliseconds()

	retrieveStart := time.Now()
	retrievers := o.deps.Retrievers
	if retrievers == nil {
		retrievers = o.buildRetrievers(opts.Sources)
	}
	var reranker *Reranker
	if o.deps.Settings.HasAPIKey() {
		reranker = o.reranker
	}
	results := HybridRetrieve(ctx, question, retrievers, defaultTopK, reranker, o.log)
	phases["retrieve_ms"] = time.Since(retrieveStart).Milliseconds()

	if len(results) == 0 {
		resp := &Response{
			Answer:     noContextAnswer,
			Sources:    []Source{},
			QueryType:  analysis.Type,
			Model:      "none",
			DurationMS: time.Since(start).Milliseconds(),
		}
		if opts.Explain {
			resp.Traces = o.traces(analysis, results, AssembleStats{}, phases, conv)
		}
		return resp, nil
	}

	assembleStart := time.Now()
	var code, vault, threads []Result
	for _, r := range results {
		switch r.SourceType {
		case SourceVault:
			vault = append(vault, r)
		case SourceThread:
			threads = append(threads, r)
		default:
			code = append(code, r)
		}
	}

	repoMap := ""
	if opts.IncludeRepoMap {
		if m, err := o.deps.Store.GetRepoMap(o.projectID(), nil); err == nil {
			repoMap = m.Content
		}
	}

	assembled, stats := AssembleContext(AssembleInput{
		Code:      code,
		Vault:     vault,
		Threads:   threads,
		RepoMap:   repoMap,
		Budget:    maxContext - estimateTokens(convContext),
		QueryType: analysis.Type,
	})
	fullContext := assembled
	if convContext != "" {
		fullContext = "# Previous Conversation\n\n" + convContext + "\n\n# Current Context\n\n" + assembled
	}
	phases["assemble_ms"] = time.Since(assembleStart).Milliseconds()

	synthesisStart := time.Now()
	answer, model, tokens := o.synthesize(ctx, question, fullContext, analysis.Type)
	phases["synthesis_ms"] = time.Since(synthesisStart).Milliseconds()

	if conv != nil {
		if err := o.conv.LogExchange(ctx, conv, "ask_oracle", question, map[string]any{"answer": answer}, true); err != nil {
			o.log.Warn("exchange logging failed", zap.Error(err))
		}
	}

	resp := &Response{
		Answer:     answer,
		Sources:    sourceList(results),
		Citations:  ExtractCitations(answer),
		QueryType:  analysis.Type,
		Model:      model,
		TokensUsed: tokens,
		CostCents:  float64(tokens) / 1000 * 0.001 * 100,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if repoMap != "" {
		resp.RepoMapSlice = repoMap
	}
	if opts.Explain {
		resp.Traces = o.traces(analysis, results, stats, phases, conv)
	}
	return resp, nil
}

// synthesize calls the chat model. LLM failures degrade to an error
// answer with zero tokens rather than failing the query.
func (o *Oracle) synthesize(ctx context.Context, question, assembled string, queryType QueryType) (answer, model string, tokens int) {
	model = o.deps.Config.Oracle.SynthesisModel
	if o.deps.Chat == nil || !o.deps.Chat.Available() {
		return "Error: no chat API key configured; cannot synthesise an answer.", model, 0
	}

	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	prompt := BuildSynthesisPrompt(question, assembled, queryType, true)
	resp, err := o.deps.Chat.Chat(ctx, llm.ChatRequest{
		Model: model,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		Temperature: synthesisTemp,
		MaxTokens:   synthesisMaxTokens,
	})
	if err != nil {
		o.log.Warn("synthesis failed", zap.Error(err))
		return fmt.Sprintf("Error: %v", err), model, 0
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return strings.TrimSpace(resp.Content), model, resp.TokensUsed
}

func (o *Oracle) projectID() string {
	return o.deps.Config.Project.ID
}

// buildRetrievers assembles the retriever list from the requested source
// set; nil means code only plus whatever else is configured.
func (o *Oracle) buildRetrievers(sources []string) []Retriever {
	want := func(name string) bool {
		if sources == nil {
			return true
		}
		for _, s := range sources {
			if s == name {
				return true
			}
		}
		return false
	}

	var retrievers []Retriever
	if want("code") {
		retrievers = append(retrievers,
			NewVectorRetriever(o.deps.Store, o.deps.Embedder, o.projectID(), o.log),
			NewBM25Retriever(o.deps.Store, o.projectID(), o.log),
			NewGraphRetriever(o.deps.Store, o.deps.Tags, o.projectID(), o.log),
		)
	}
	if want("vault") && o.deps.Config.Oracle.VaultURL != "" {
		retrievers = append(retrievers,
			NewVaultRetriever(o.deps.Config.Oracle.VaultURL, o.deps.Settings.SyncToken, o.log))
	}
	if want("threads") {
		retrievers = append(retrievers,
			NewThreadRetriever(o.deps.Store, o.deps.Embedder, o.deps.Summarizer, o.projectID(), o.log))
	}
	return retrievers
}

func sourceList(results []Result) []Source {
	n := len(results)
	if n > maxSources {
		n = maxSources
	}
	sources := make([]Source, n)
	for i := 0; i < n; i++ {
		sources[i] = Source{
			Path:   results[i].SourcePath,
			Type:   results[i].SourceType,
			Method: results[i].Method,
			Score:  results[i].Score,
		}
	}
	return sources
}

func (o *Oracle) traces(analysis Analysis, results []Result, stats AssembleStats, phases map[string]int64, conv *store.Conversation) map[string]any {
	bySource := make(map[SourceType]int)
	scoreSum := make(map[SourceType]float64)
	for _, r := range results {
		bySource[r.SourceType]++
		scoreSum[r.SourceType] += r.Score
	}
	meanScores := make(map[string]float64, len(bySource))
	counts := make(map[string]int, len(bySource))
	for st, n := range bySource {
		counts[string(st)] = n
		meanScores[string(st)] = scoreSum[st] / float64(n)
	}

	traces := map[string]any{
		"query_type":       string(analysis.Type),
		"query_confidence": analysis.Confidence,
		"query_symbols":    analysis.Symbols,
		"source_counts":    counts,
		"mean_scores":      meanScores,
		"context_tokens":   stats.TokenCount,
		"sources_included": stats.SourcesIncluded,
		"sources_excluded": stats.SourcesExcluded,
		"sections":         stats.Sections,
		"timings":          phases,
	}
	if conv != nil {
		traces["conversation"] = map[string]any{
			"id":                conv.ID,
			"status":            string(conv.Status),
			"exchanges":         len(conv.Exchanges),
			"tokens_used":       conv.TokensUsed,
			"compression_count": conv.CompressionCount,
		}
	}
	return traces
}
