package oracle

import (
	"fmt"
	"strings"

	"vlt/internal/repomap"
)

// AssembleInput carries everything the context assembler composes.
type AssembleInput struct {
	Code      []Result
	Vault     []Result
	Threads   []Result
	RepoMap   string
	Budget    int
	QueryType QueryType
}

// AssembleStats is the statistics bag returned alongside the context.
type AssembleStats struct {
	TokenCount      int
	SourcesIncluded int
	SourcesExcluded int
	Sections        map[string]int
}

const (
	repoMapShare     = 10
	defShare         = 15
	codeShare        = 60
	vaultShare       = 20
	threadsMinTokens = 500
	scoreAnnotateMin = 0.80
)

// AssembleContext allocates the token budget across priority-ordered
// sections and renders each included result with a citation header.
// Deterministic for a given input and budget.
func AssembleContext(in AssembleInput) (string, AssembleStats) {
	budget := in.Budget
	if budget <= 0 {
		budget = 16000
	}
	stats := AssembleStats{Sections: make(map[string]int)}
	included := make(map[string]bool)

	repoBudget := budget * repoMapShare / 100
	remaining := budget - repoBudget

	var sections []string

	structural := in.QueryType == QueryDefinition || in.QueryType == QueryReferences
	if structural {
		var defs, rest []Result
		for _, r := range in.Code {
			if r.SourceType == SourceDefinition || r.SourceType == SourceReference {
				defs = append(defs, r)
			} else {
				rest = append(rest, r)
			}
		}
		in.Code = rest

		defBudget := remaining * defShare / 100
		text, used := fillSection("## Definitions and References", defs, defBudget, included, &stats)
		if text != "" {
			sections = append(sections, text)
			stats.Sections["definitions"] = used
		}
		remaining -= used
	}

	codeBudget := remaining * codeShare / 100
	text, used := fillSection("## Relevant Code", in.Code, codeBudget, included, &stats)
	if text != "" {
		sections = append(sections, text)
		stats.Sections["code"] = used
	}
	remaining -= used

	vaultBudget := remaining * vaultShare / 100
	text, used = fillSection("## Documentation", in.Vault, vaultBudget, included, &stats)
	if text != "" {
		sections = append(sections, text)
		stats.Sections["vault"] = used
	}
	remaining -= used

	if remaining > threadsMinTokens {
		text, used = fillSection("## Discussion Threads", in.Threads, remaining, included, &stats)
		if text != "" {
			sections = append(sections, text)
			stats.Sections["threads"] = used
		}
	} else {
		stats.SourcesExcluded += len(in.Threads)
	}

	if in.RepoMap != "" {
		mapText := repomap.Truncate(in.RepoMap, repoBudget-estimateTokens("## Repository Map\n\n"))
		if mapText != "" {
			section := "## Repository Map\n\n" + mapText
			sections = append(sections, section)
			stats.Sections["repo_map"] = estimateTokens(section)
		}
	}

	context := strings.Join(sections, "\n\n")
	stats.TokenCount = estimateTokens(context)
	return context, stats
}

// fillSection greedily renders results into a section until its budget
// is spent. Cross-section duplicates and overflow results count as
// excluded.
func fillSection(heading string, results []Result, budget int, included map[string]bool, stats *AssembleStats) (string, int) {
	if len(results) == 0 || budget <= 0 {
		stats.SourcesExcluded += len(results)
		return "", 0
	}

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	used := estimateTokens(heading + "\n")
	wrote := false

	for _, r := range results {
		if included[r.SourcePath] {
			stats.SourcesExcluded++
			continue
		}
		block := "\n" + formatResult(r) + "\n"
		cost := estimateTokens(block)
		if used+cost > budget {
			stats.SourcesExcluded++
			continue
		}
		b.WriteString(block)
		used += cost
		included[r.SourcePath] = true
		stats.SourcesIncluded++
		wrote = true
	}
	if !wrote {
		return "", 0
	}
	return strings.TrimRight(b.String(), "\n"), used
}

// formatResult renders one result with the citation header matching its
// source type.
func formatResult(r Result) string {
	switch r.SourceType {
	case SourceCode:
		header := fmt.Sprintf("### [%s]", r.SourcePath)
		if r.Score >= scoreAnnotateMin {
			header += fmt.Sprintf(" (score: %.2f)", r.Score)
		}
		if qn := r.Metadata["qualified_name"]; qn != "" {
			header += " - " + qn
		}
		body := r.Content
		if !strings.Contains(body, "```") {
			body = fmt.Sprintf("```%s\n%s\n```", r.Metadata["language"], strings.TrimRight(body, "\n"))
		}
		return header + "\n" + body
	case SourceVault:
		header := fmt.Sprintf("### [%s]", r.SourcePath)
		if title := r.Metadata["title"]; title != "" {
			header += " - " + title
		}
		return header + "\n" + r.Content
	case SourceThread:
		header := fmt.Sprintf("### [%s]", r.SourcePath)
		if author := r.Metadata["author"]; author != "" {
			if date := r.Metadata["date"]; date != "" {
				header += fmt.Sprintf(" (by %s, %s)", author, date)
			} else {
				header += fmt.Sprintf(" (by %s)", author)
			}
		}
		return header + "\n" + r.Content
	default:
		return fmt.Sprintf("### [%s]\n%s", r.SourcePath, r.Content)
	}
}
