// Package delta detects file changes, queues them, and commits batched
// re-indexing under file, line, and age thresholds.
package delta

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"vlt/internal/store"
)

// deletedLineEstimate is the fixed line-delta charged for a deleted file.
const deletedLineEstimate = 100

// CalculateFileHash returns the 32-hex MD5 of the file bytes.
func CalculateFileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("delta: hash %s: %w", path, err)
	}
	return store.HashContent(data), nil
}

// DetectFileChanges compares a file on disk against its last-indexed hash.
// Returns the change kind with old and new hashes; nil knownHash means the
// file was never indexed.
func DetectFileChanges(path string, knownHash *string) (store.ChangeKind, *string, *string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if knownHash == nil {
			return store.ChangeUnchanged, nil, nil, nil
		}
		return store.ChangeDeleted, knownHash, nil, nil
	}
	if err != nil {
		return store.ChangeUnchanged, nil, nil, fmt.Errorf("delta: read %s: %w", path, err)
	}

	hash := store.HashContent(data)
	if knownHash == nil {
		return store.ChangeAdded, nil, &hash, nil
	}
	if *knownHash != hash {
		return store.ChangeModified, knownHash, &hash, nil
	}
	return store.ChangeUnchanged, knownHash, &hash, nil
}

// EstimateLinesChanged approximates the line delta for a change. Added
// files count every line, modifications a conservative quarter, deletions
// a fixed estimate.
func EstimateLinesChanged(kind store.ChangeKind, content []byte) int {
	switch kind {
	case store.ChangeAdded:
		return countLines(content)
	case store.ChangeModified:
		return countLines(content) / 4
	case store.ChangeDeleted:
		return deletedLineEstimate
	}
	return 0
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte("\n"))
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

var (
	pathLikeRe   = regexp.MustCompile(`(\w+[./_-])+\w+\.\w+`)
	filenameRe   = regexp.MustCompile(`\b\w+\.\w+\b`)
	identifierRe = regexp.MustCompile(`\b([A-Z]\w+|[a-z]+_\w+)\b`)
)

// FilesMatchingQuery returns the pending file paths a query refers to.
// Path-like and filename tokens in the query match literally against
// pending paths; file stems match capitalised or snake_case identifiers.
func FilesMatchingQuery(query string, pending []string) []string {
	matched := make(map[string]bool)

	tokens := pathLikeRe.FindAllString(query, -1)
	tokens = append(tokens, filenameRe.FindAllString(query, -1)...)
	for _, token := range tokens {
		for _, path := range pending {
			if path == token || strings.HasSuffix(path, "/"+token) {
				matched[path] = true
			}
		}
	}

	identifiers := make(map[string]bool)
	for _, id := range identifierRe.FindAllString(query, -1) {
		identifiers[strings.ToLower(id)] = true
	}
	for _, path := range pending {
		if matched[path] {
			continue
		}
		if identifiers[strings.ToLower(stem(path))] {
			matched[path] = true
		}
	}

	var out []string
	for _, path := range pending {
		if matched[path] {
			out = append(out, path)
		}
	}
	return out
}

func stem(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		path = path[idx+1:]
	}
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		path = path[:idx]
	}
	return path
}
