package repomap

import (
	"fmt"
	"sort"
	"strings"

	"vlt/internal/store"
)

// Options control rendering of the map.
type Options struct {
	MaxTokens         int
	IncludeSignatures bool
	IncludeDocstrings bool
	Scope             *string
}

// Stats reports how much of the symbol set fit the budget.
type Stats struct {
	SymbolsIncluded int
	SymbolsTotal    int
	FilesIncluded   int
}

// estimateTokens uses the 4-chars-per-token heuristic shared across the
// pipeline.
func estimateTokens(text string) int {
	return len(text) / 4
}

// FilterByScope keeps only symbols whose file path starts with prefix.
func FilterByScope(symbols []store.CodeNode, prefix string) []store.CodeNode {
	var out []store.CodeNode
	for _, s := range symbols {
		if strings.HasPrefix(s.FilePath, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// Generate ranks symbols by PageRank over the edge list, orders them by
// descending centrality, and greedily renders file-grouped blocks until
// the token budget is exhausted.
func Generate(symbols []store.CodeNode, edges []store.CodeEdge, opts Options) (*store.RepoMap, Stats) {
	if opts.Scope != nil {
		symbols = FilterByScope(symbols, *opts.Scope)
	}
	stats := Stats{SymbolsTotal: len(symbols)}
	if len(symbols) == 0 {
		return &store.RepoMap{Content: "", Scope: opts.Scope}, stats
	}

	ids := make([]string, len(symbols))
	for i, s := range symbols {
		ids[i] = s.ID
	}
	out := make(map[string][]string)
	for _, e := range edges {
		out[e.SourceID] = append(out[e.SourceID], e.TargetID)
	}
	rank := PageRank(ids, out)

	ordered := make([]store.CodeNode, len(symbols))
	copy(ordered, symbols)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := rank[ordered[i].ID], rank[ordered[j].ID]
		if ri != rj {
			return ri > rj
		}
		if ordered[i].FilePath != ordered[j].FilePath {
			return ordered[i].FilePath < ordered[j].FilePath
		}
		return lineOf(ordered[i]) < lineOf(ordered[j])
	})

	budget := opts.MaxTokens
	if budget <= 0 {
		budget = 2048
	}

	// Greedy fill in centrality order. A symbol's cost includes its file
	// header when the file is not yet in the map.
	used := 0
	includedFiles := make(map[string]bool)
	bySymbol := make(map[string]string, len(ordered))
	var included []store.CodeNode
	for _, s := range ordered {
		line := renderSymbol(s, opts)
		cost := estimateTokens(line)
		if !includedFiles[s.FilePath] {
			cost += estimateTokens(fileHeader(s.FilePath))
		}
		if used+cost > budget {
			break
		}
		used += cost
		includedFiles[s.FilePath] = true
		bySymbol[s.ID] = line
		included = append(included, s)
	}
	stats.SymbolsIncluded = len(included)
	stats.FilesIncluded = len(includedFiles)

	// Group by file, files ordered by first appearance, symbols within a
	// file by line.
	var fileOrder []string
	grouped := make(map[string][]store.CodeNode)
	for _, s := range included {
		if len(grouped[s.FilePath]) == 0 {
			fileOrder = append(fileOrder, s.FilePath)
		}
		grouped[s.FilePath] = append(grouped[s.FilePath], s)
	}

	var b strings.Builder
	for _, path := range fileOrder {
		members := grouped[path]
		sort.SliceStable(members, func(i, j int) bool { return lineOf(members[i]) < lineOf(members[j]) })
		b.WriteString(fileHeader(path))
		for _, s := range members {
			b.WriteString(bySymbol[s.ID])
		}
		b.WriteString("\n")
	}

	content := strings.TrimRight(b.String(), "\n")
	if content != "" {
		content += "\n"
	}
	m := &store.RepoMap{
		Content:         content,
		TokenCount:      estimateTokens(content),
		BudgetUsed:      used,
		FilesIncluded:   stats.FilesIncluded,
		SymbolsIncluded: stats.SymbolsIncluded,
		SymbolsTotal:    stats.SymbolsTotal,
		Scope:           opts.Scope,
	}
	return m, stats
}

func fileHeader(path string) string {
	return fmt.Sprintf("### %s\n", path)
}

func renderSymbol(s store.CodeNode, opts Options) string {
	var b strings.Builder
	if opts.IncludeSignatures && s.Signature != nil {
		b.WriteString(*s.Signature)
	} else {
		b.WriteString(s.Kind + " " + s.Name)
	}
	b.WriteString("\n")
	if opts.IncludeDocstrings && s.Docstring != nil {
		doc := firstLine(*s.Docstring)
		if doc != "" {
			b.WriteString("    " + doc + "\n")
		}
	}
	return b.String()
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func lineOf(s store.CodeNode) int {
	if s.Line != nil {
		return *s.Line
	}
	return 0
}

// Truncate cuts rendered content to a token budget, preferring to break
// at the last newline when that newline falls within the final fifth of
// the allowance, and appends a truncation marker.
func Truncate(content string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if estimateTokens(content) <= maxTokens {
		return content
	}
	limit := maxTokens * 4
	if limit > len(content) {
		limit = len(content)
	}
	cut := content[:limit]
	if idx := strings.LastIndexByte(cut, '\n'); idx >= limit-limit/5 {
		cut = cut[:idx]
	}
	return cut + "\n[… truncated for token budget]"
}
