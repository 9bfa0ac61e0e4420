package oracle

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeResult(path, qn, body string, score float64) Result {
	return Result{
		Content:    body,
		SourceType: SourceCode,
		SourcePath: path,
		Method:     MethodVector,
		Score:      score,
		TokenCount: estimateTokens(body),
		Metadata:   map[string]string{"language": "python", "qualified_name": qn},
	}
}

func TestAssembleFormatsCodeWithCitationHeader(t *testing.T) {
	ctx, stats := AssembleContext(AssembleInput{
		Code: []Result{
			codeResult("src/auth.py:10", "src.auth.login", "def login(): pass", 0.95),
			codeResult("src/db.py:5", "src.db.connect", "def connect(): pass", 0.50),
		},
		Budget:    16000,
		QueryType: QueryConceptual,
	})

	assert.Contains(t, ctx, "## Relevant Code")
	assert.Contains(t, ctx, "### [src/auth.py:10] (score: 0.95) - src.auth.login")
	assert.Contains(t, ctx, "```python\ndef login(): pass\n```")
	// Below 0.80 there is no score annotation.
	assert.Contains(t, ctx, "### [src/db.py:5] - src.db.connect")
	assert.NotContains(t, ctx, "(score: 0.50)")
	assert.Equal(t, 2, stats.SourcesIncluded)
}

func TestAssembleDefinitionsSection(t *testing.T) {
	def := Result{
		Content:    "function login defined at src/auth.py:10",
		SourceType: SourceDefinition,
		SourcePath: "src/auth.py:10",
		Method:     MethodCtags,
		Score:      1.0,
	}
	ctx, _ := AssembleContext(AssembleInput{
		Code:      []Result{def, codeResult("src/db.py:5", "src.db.connect", "def connect(): pass", 0.4)},
		Budget:    16000,
		QueryType: QueryDefinition,
	})

	assert.Contains(t, ctx, "## Definitions and References")
	assert.Contains(t, ctx, "### [src/auth.py:10]\nfunction login defined")
	defsIdx := strings.Index(ctx, "## Definitions and References")
	codeIdx := strings.Index(ctx, "## Relevant Code")
	assert.Less(t, defsIdx, codeIdx)
}

func TestAssembleBudgetProperty(t *testing.T) {
	var code, vault, threads []Result
	for i := 0; i < 40; i++ {
		code = append(code, codeResult(
			fmt.Sprintf("src/f%02d.py:1", i),
			fmt.Sprintf("src.f%02d.fn", i),
			strings.Repeat("def fn(): pass\n", 20), 0.9))
		vault = append(vault, Result{
			Content: strings.Repeat("notes ", 100), SourceType: SourceVault,
			SourcePath: fmt.Sprintf("notes/n%02d.md", i), Score: 0.5,
		})
		threads = append(threads, Result{
			Content: strings.Repeat("talk ", 100), SourceType: SourceThread,
			SourcePath: fmt.Sprintf("thread:t#%d", i), Score: 0.4,
			Metadata: map[string]string{"author": "a", "date": "2026-01-02"},
		})
	}

	for _, budget := range []int{1000, 4000, 16000} {
		ctx, stats := AssembleContext(AssembleInput{
			Code: code, Vault: vault, Threads: threads,
			Budget: budget, QueryType: QueryConceptual,
		})
		assert.LessOrEqual(t, stats.TokenCount, budget, "budget %d", budget)
		assert.LessOrEqual(t, estimateTokens(ctx), budget)
		assert.GreaterOrEqual(t, stats.SourcesIncluded+stats.SourcesExcluded, 120)
	}
}

func TestAssembleDedupeAcrossSections(t *testing.T) {
	dup := codeResult("src/auth.py:10", "src.auth.login", "def login(): pass", 0.9)
	ctx, stats := AssembleContext(AssembleInput{
		Code:      []Result{dup, dup},
		Budget:    16000,
		QueryType: QueryConceptual,
	})
	assert.Equal(t, 1, strings.Count(ctx, "### [src/auth.py:10]"))
	assert.Equal(t, 1, stats.SourcesIncluded)
	assert.Equal(t, 1, stats.SourcesExcluded)
}

func TestAssembleThreadFormatting(t *testing.T) {
	ctx, _ := AssembleContext(AssembleInput{
		Threads: []Result{{
			Content: "we decided on sqlite", SourceType: SourceThread,
			SourcePath: "thread:abc#3", Score: 0.6,
			Metadata: map[string]string{"author": "alice", "date": "2026-08-01"},
		}},
		Budget:    16000,
		QueryType: QueryConceptual,
	})
	assert.Contains(t, ctx, "## Discussion Threads")
	assert.Contains(t, ctx, "### [thread:abc#3] (by alice, 2026-08-01)")
}

func TestAssembleRepoMapTruncated(t *testing.T) {
	repoMap := strings.Repeat("### src/file.py\ndef fn()\n", 400)
	ctx, stats := AssembleContext(AssembleInput{
		Code:      []Result{codeResult("a.py:1", "a.f", "def f(): pass", 0.9)},
		RepoMap:   repoMap,
		Budget:    2000,
		QueryType: QueryConceptual,
	})
	assert.Contains(t, ctx, "## Repository Map")
	assert.Contains(t, ctx, "[… truncated for token budget]")
	// Repo map stays within its 10% reservation.
	require.Contains(t, stats.Sections, "repo_map")
	assert.LessOrEqual(t, stats.Sections["repo_map"], 2000*10/100+16)
}

func TestAssembleTinyBudgetWithRepoMap(t *testing.T) {
	// A budget too small for even the repo-map header must not panic and
	// must stay within the budget.
	repoMap := strings.Repeat("### src/file.py\ndef fn()\n", 40)
	for _, budget := range []int{1, 10, 40} {
		ctx, stats := AssembleContext(AssembleInput{
			Code:      []Result{codeResult("a.py:1", "a.f", "def f(): pass", 0.9)},
			RepoMap:   repoMap,
			Budget:    budget,
			QueryType: QueryConceptual,
		})
		assert.LessOrEqual(t, stats.TokenCount, budget, "budget %d", budget)
		assert.NotContains(t, ctx, "## Repository Map\n\n\n")
	}
}

func TestAssembleSkipsThreadsWhenRemainderSmall(t *testing.T) {
	// Budget 1000: repo-map reserves 100, code may take 540 of the 900
	// left; the big chunk spends it, leaving under 500 for threads.
	big := codeResult("a.py:1", "a.f", strings.Repeat("x", 1800), 0.9)
	ctx, stats := AssembleContext(AssembleInput{
		Code: []Result{big},
		Threads: []Result{{
			Content: "thread text", SourceType: SourceThread,
			SourcePath: "thread:t#1", Score: 0.9,
		}},
		Budget:    1000,
		QueryType: QueryConceptual,
	})
	assert.NotContains(t, ctx, "## Discussion Threads")
	assert.GreaterOrEqual(t, stats.SourcesExcluded, 1)
}
