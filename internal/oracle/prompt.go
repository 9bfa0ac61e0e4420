package oracle

import (
	"fmt"
	"regexp"
	"strings"
)

var systemInstructions = map[QueryType]string{
	QueryDefinition:  "You are a code intelligence assistant. Answer where the symbol is defined, with its exact file and line, and summarise its purpose and signature.",
	QueryReferences:  "You are a code intelligence assistant. List every place the symbol is used or called, grouped by caller, with exact file and line locations.",
	QueryConceptual:  "You are a code intelligence assistant. Explain the concept or component at an architectural level, grounded strictly in the provided context.",
	QueryBehavioural: "You are a code intelligence assistant. Walk through what the code actually does step by step, grounded strictly in the provided context.",
	QueryUnknown:     "You are a code intelligence assistant. Answer the question using only the provided context.",
}

const citationInstruction = `Every claim must carry a citation in one of these formats: [file.py:42], [docs/x.md], or [thread:id#15]. If the context does not cover part of the question, state that explicitly rather than guessing.`

// BuildSynthesisPrompt composes the single synthesis prompt from the
// question, assembled context, and query type.
func BuildSynthesisPrompt(question, context string, queryType QueryType, includeCitations bool) string {
	instruction, ok := systemInstructions[queryType]
	if !ok {
		instruction = systemInstructions[QueryUnknown]
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\n")
	if includeCitations {
		b.WriteString(citationInstruction)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "# Question\n\n%s\n\n", question)
	fmt.Fprintf(&b, "# Context\n\n%s\n\n", context)
	b.WriteString("Structure the response as: direct answer first, then supporting detail, examples where useful, citations throughout, and caveats about anything the context leaves uncovered.\n\n## Answer")
	return b.String()
}

var citationRe = regexp.MustCompile(`\[([^\]]+)\]`)

// ExtractCitations pulls citation-shaped bracket captures from a
// response, preserving first-occurrence order.
func ExtractCitations(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		capture := m[1]
		if !strings.ContainsAny(capture, ":/#") {
			continue
		}
		if seen[capture] {
			continue
		}
		seen[capture] = true
		out = append(out, capture)
	}
	return out
}
