// Package ctags loads symbol definitions from a universal-ctags JSON
// index (one JSON object per line, as produced by
// `ctags --output-format=json`).
package ctags

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"vlt/internal/store"
)

// tagLine mirrors the fields universal-ctags emits per tag entry. Lines
// with other _type values (ptag headers) are skipped.
type tagLine struct {
	Type      string `json:"_type"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	Kind      string `json:"kind"`
	Scope     string `json:"scope"`
	ScopeKind string `json:"scopeKind"`
	Signature string `json:"signature"`
	Language  string `json:"language"`
}

// Load parses a JSON-lines tag stream into symbol definitions. Malformed
// lines are skipped, not fatal; the skip count is logged.
func Load(r io.Reader, log *zap.Logger) ([]store.SymbolDefinition, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var symbols []store.SymbolDefinition
	skipped := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var tag tagLine
		if err := json.Unmarshal(line, &tag); err != nil {
			skipped++
			continue
		}
		if tag.Type != "tag" || tag.Name == "" || tag.Path == "" {
			continue
		}
		sym := store.SymbolDefinition{
			Name:     tag.Name,
			FilePath: tag.Path,
			Line:     tag.Line,
			Kind:     tag.Kind,
			Language: tag.Language,
		}
		if tag.Scope != "" {
			scope := tag.Scope
			sym.Scope = &scope
		}
		if tag.Signature != "" {
			sig := tag.Signature
			sym.Signature = &sig
		}
		symbols = append(symbols, sym)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ctags: read index: %w", err)
	}
	if skipped > 0 && log != nil {
		log.Warn("skipped malformed tag lines", zap.Int("count", skipped))
	}
	return symbols, nil
}

// LoadFile loads a tags index from disk.
func LoadFile(path string, log *zap.Logger) ([]store.SymbolDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ctags: open index: %w", err)
	}
	defer f.Close()
	return Load(f, log)
}

// Generate runs the ctags binary over root and parses its output. Returns
// an error when the binary is not installed; callers treat that as "no
// external index" and fall back to the code graph.
func Generate(ctx context.Context, root string, log *zap.Logger) ([]store.SymbolDefinition, error) {
	bin, err := exec.LookPath("ctags")
	if err != nil {
		return nil, fmt.Errorf("ctags: binary not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "-R", "--output-format=json", "--fields=+nS", "-f", "-", root)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ctags: run: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return Load(&stdout, log)
}

// Index is an in-memory symbol lookup built from loaded definitions.
type Index struct {
	byName map[string][]store.SymbolDefinition
}

// NewIndex builds a name-keyed lookup over symbol definitions.
func NewIndex(symbols []store.SymbolDefinition) *Index {
	idx := &Index{byName: make(map[string][]store.SymbolDefinition)}
	for _, s := range symbols {
		idx.byName[s.Name] = append(idx.byName[s.Name], s)
	}
	return idx
}

// Lookup returns every definition recorded under a symbol name.
func (i *Index) Lookup(name string) []store.SymbolDefinition {
	return i.byName[name]
}

// Len reports the number of distinct symbol names in the index.
func (i *Index) Len() int { return len(i.byName) }
