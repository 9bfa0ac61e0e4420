package repomap

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlt/internal/store"
)

func TestPageRankEmpty(t *testing.T) {
	assert.Empty(t, PageRank(nil, nil))
}

func TestPageRankSingleton(t *testing.T) {
	rank := PageRank([]string{"a"}, nil)
	assert.Equal(t, map[string]float64{"a": 1.0}, rank)
}

func TestPageRankNormalisedAndOrdered(t *testing.T) {
	// Everything points at "hub"; it must rank highest.
	nodes := []string{"hub", "a", "b", "c"}
	out := map[string][]string{
		"a": {"hub"},
		"b": {"hub"},
		"c": {"hub", "a"},
	}
	rank := PageRank(nodes, out)
	require.Len(t, rank, 4)

	sum := 0.0
	for _, score := range rank {
		sum += score
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	for _, n := range []string{"a", "b", "c"} {
		assert.Greater(t, rank["hub"], rank[n])
	}
	// "a" receives an extra inbound edge over "b".
	assert.Greater(t, rank["a"], rank["b"])
}

func TestPageRankIgnoresUnknownEdgeEndpoints(t *testing.T) {
	rank := PageRank([]string{"a", "b"}, map[string][]string{
		"a":        {"b", "external.symbol"},
		"external": {"a"},
	})
	require.Len(t, rank, 2)
	sum := rank["a"] + rank["b"]
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Greater(t, rank["b"], rank["a"])
}

func sym(id, path string, line int, sig, doc string) store.CodeNode {
	n := store.CodeNode{ID: id, FilePath: path, Kind: "function", Name: id, Line: &line}
	if sig != "" {
		n.Signature = &sig
	}
	if doc != "" {
		n.Docstring = &doc
	}
	return n
}

func testSymbols() ([]store.CodeNode, []store.CodeEdge) {
	symbols := []store.CodeNode{
		sym("auth.login", "src/auth.py", 10, "def login(token)", "Validate a token."),
		sym("auth.logout", "src/auth.py", 40, "def logout(session)", ""),
		sym("db.connect", "src/db.py", 5, "def connect(dsn)", "Open a session."),
		sym("util.pad", "src/util.py", 3, "def pad(s)", ""),
	}
	edges := []store.CodeEdge{
		{SourceID: "auth.login", TargetID: "db.connect", Kind: store.EdgeCalls},
		{SourceID: "auth.logout", TargetID: "db.connect", Kind: store.EdgeCalls},
		{SourceID: "util.pad", TargetID: "auth.login", Kind: store.EdgeCalls},
	}
	return symbols, edges
}

func TestGenerateGroupsByFile(t *testing.T) {
	symbols, edges := testSymbols()
	m, stats := Generate(symbols, edges, Options{
		MaxTokens:         2048,
		IncludeSignatures: true,
		IncludeDocstrings: true,
	})

	assert.Equal(t, 4, stats.SymbolsIncluded)
	assert.Equal(t, 4, stats.SymbolsTotal)
	assert.Equal(t, 3, stats.FilesIncluded)

	assert.Contains(t, m.Content, "### src/auth.py\n")
	assert.Contains(t, m.Content, "### src/db.py\n")
	assert.Contains(t, m.Content, "def login(token)\n")
	assert.Contains(t, m.Content, "    Validate a token.\n")
	assert.Greater(t, m.TokenCount, 0)

	// Symbols within a file stay in line order.
	authBlock := m.Content[strings.Index(m.Content, "### src/auth.py"):]
	assert.Less(t, strings.Index(authBlock, "login"), strings.Index(authBlock, "logout"))
}

func TestGenerateBudgetSubsetProperty(t *testing.T) {
	symbols, edges := testSymbols()

	small, smallStats := Generate(symbols, edges, Options{MaxTokens: 14, IncludeSignatures: true})
	large, largeStats := Generate(symbols, edges, Options{MaxTokens: 28, IncludeSignatures: true})

	assert.LessOrEqual(t, smallStats.SymbolsIncluded, largeStats.SymbolsIncluded)
	for _, line := range strings.Split(strings.TrimSpace(small.Content), "\n") {
		if line == "" {
			continue
		}
		assert.Contains(t, large.Content, line)
	}
}

func TestGenerateScopeFilter(t *testing.T) {
	symbols, edges := testSymbols()
	scope := "src/auth"
	m, stats := Generate(symbols, edges, Options{MaxTokens: 2048, IncludeSignatures: true, Scope: &scope})

	assert.Equal(t, 2, stats.SymbolsTotal)
	assert.Contains(t, m.Content, "src/auth.py")
	assert.NotContains(t, m.Content, "src/db.py")
	require.NotNil(t, m.Scope)
	assert.Equal(t, scope, *m.Scope)
}

func TestGenerateEmptySymbols(t *testing.T) {
	m, stats := Generate(nil, nil, Options{MaxTokens: 100})
	assert.Empty(t, m.Content)
	assert.Zero(t, stats.SymbolsIncluded)
}

func TestTruncate(t *testing.T) {
	content := strings.Repeat("line one two three\n", 50)
	assert.Equal(t, content, Truncate(content, estimateTokens(content)+10))

	cut := Truncate(content, 20)
	assert.LessOrEqual(t, len(cut), 20*4+len("\n[… truncated for token budget]"))
	assert.True(t, strings.HasSuffix(cut, "[… truncated for token budget]"))
}

func TestTruncateNonPositiveBudget(t *testing.T) {
	content := strings.Repeat("### src/file.py\ndef fn()\n", 4)
	assert.Equal(t, "", Truncate(content, 0))
	assert.Equal(t, "", Truncate(content, -3))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 3, estimateTokens("abcdefghijklm"))
	assert.Equal(t, 0, estimateTokens("abc"))
	assert.True(t, math.Abs(float64(estimateTokens(strings.Repeat("x", 400)))-100) < 1)
}
