package oracle

import (
	"regexp"
	"strings"
)

// QueryType classifies the intent of a question.
type QueryType string

const (
	QueryDefinition  QueryType = "definition"
	QueryReferences  QueryType = "references"
	QueryConceptual  QueryType = "conceptual"
	QueryBehavioural QueryType = "behavioural"
	QueryUnknown     QueryType = "unknown"
)

// Analysis is the lexical classification of a query. No LLM involved.
type Analysis struct {
	Type       QueryType
	Confidence float64
	Symbols    []string
}

var (
	definitionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)where\s+is\s+([\w.]+)\s+defined`),
		regexp.MustCompile(`(?i)definition\s+of\s+([\w.]+)`),
		regexp.MustCompile(`(?i)find\s+([\w.]+)\s+definition`),
		regexp.MustCompile(`(?i)show\s+me\s+([\w.]+)\s+definition`),
		regexp.MustCompile(`(?i)what\s+is\s+([\w.]+)\b`),
	}
	referencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)where\s+is\s+([\w.]+)\s+used`),
		regexp.MustCompile(`(?i)what\s+calls\s+([\w.]+)`),
		regexp.MustCompile(`(?i)who\s+calls\s+([\w.]+)`),
		regexp.MustCompile(`(?i)references\s+to\s+([\w.]+)`),
		regexp.MustCompile(`(?i)usages?\s+of\s+([\w.]+)`),
		regexp.MustCompile(`(?i)find\s+([\w.]+)\s+references`),
	}
	behaviouralKeywords = []string{"how does", "what happens when", "why does", "how is", "how do"}
	conceptualKeywords  = []string{"explain", "overview", "architecture", "describe", "purpose of", "design of"}

	symbolRe = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]+|[a-z][a-z0-9]*(?:_\w+)+|[a-z]+[A-Z]\w*)\b`)

	symbolStopWords = map[string]bool{
		"The": true, "This": true, "That": true, "What": true, "Where": true,
		"When": true, "Which": true, "Who": true, "Why": true, "How": true,
		"Does": true, "Show": true, "Find": true, "Is": true, "Are": true,
	}
)

// Analyze classifies a question and extracts candidate symbols.
func Analyze(query string) Analysis {
	a := Analysis{Type: QueryUnknown, Confidence: 0.3}

	for _, re := range definitionPatterns {
		if m := re.FindStringSubmatch(query); m != nil {
			a.Type = QueryDefinition
			a.Confidence = 0.9
			a.Symbols = appendUnique(a.Symbols, m[1])
			break
		}
	}
	if a.Type == QueryUnknown {
		for _, re := range referencePatterns {
			if m := re.FindStringSubmatch(query); m != nil {
				a.Type = QueryReferences
				a.Confidence = 0.9
				a.Symbols = appendUnique(a.Symbols, m[1])
				break
			}
		}
	}
	if a.Type == QueryUnknown {
		lower := strings.ToLower(query)
		for _, kw := range behaviouralKeywords {
			if strings.Contains(lower, kw) {
				a.Type = QueryBehavioural
				a.Confidence = 0.7
				break
			}
		}
		if a.Type == QueryUnknown {
			for _, kw := range conceptualKeywords {
				if strings.Contains(lower, kw) {
					a.Type = QueryConceptual
					a.Confidence = 0.6
					break
				}
			}
		}
	}

	for _, m := range symbolRe.FindAllString(query, -1) {
		if symbolStopWords[m] {
			continue
		}
		a.Symbols = appendUnique(a.Symbols, m)
	}
	return a
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}
