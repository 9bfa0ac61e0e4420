package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSynthesisPrompt(t *testing.T) {
	prompt := BuildSynthesisPrompt("Where is login defined?", "### [auth.py:10]\ncode", QueryDefinition, true)

	assert.Contains(t, prompt, "# Question\n\nWhere is login defined?")
	assert.Contains(t, prompt, "# Context\n\n### [auth.py:10]")
	assert.Contains(t, prompt, "[file.py:42]")
	assert.Contains(t, prompt, "[thread:id#15]")
	assert.True(t, strings.HasSuffix(prompt, "## Answer"))
	assert.Contains(t, prompt, systemInstructions[QueryDefinition])
}

func TestBuildSynthesisPromptWithoutCitations(t *testing.T) {
	prompt := BuildSynthesisPrompt("q", "ctx", QueryConceptual, false)
	assert.NotContains(t, prompt, "[file.py:42]")
}

func TestExtractCitations(t *testing.T) {
	text := "Login lives in [src/auth.py:42] and is documented in [docs/auth.md]. " +
		"See [thread:abc#3] for history. [src/auth.py:42] again. [NOTE] is not a citation."
	citations := ExtractCitations(text)
	assert.Equal(t, []string{"src/auth.py:42", "docs/auth.md", "thread:abc#3"}, citations)
}

func TestExtractCitationsEmpty(t *testing.T) {
	assert.Empty(t, ExtractCitations("no brackets here"))
	assert.Empty(t, ExtractCitations("[plain] [words]"))
}
