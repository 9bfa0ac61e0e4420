package delta

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"vlt/internal/codegraph"
	"vlt/internal/config"
	"vlt/internal/llm"
	"vlt/internal/store"
	"vlt/internal/vector"
)

var skipDirs = map[string]bool{
	".git": true, ".hg": true, "node_modules": true, "__pycache__": true,
	".venv": true, "venv": true, "vendor": true, "dist": true, "build": true,
}

// Manager coordinates change detection and batched re-indexing for one
// project. It is the only writer of chunks, graph rows, and symbols.
type Manager struct {
	store     *store.Store
	builder   *codegraph.Builder
	embedder  llm.Client
	cfg       config.DeltaConfig
	include   []string
	exclude   []string
	projectID string
	root      string
	log       *zap.Logger
}

func NewManager(st *store.Store, builder *codegraph.Builder, embedder llm.Client, cfg *config.Config, root string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:     st,
		builder:   builder,
		embedder:  embedder,
		cfg:       cfg.CodeRAG.Delta,
		include:   cfg.CodeRAG.Include,
		exclude:   cfg.CodeRAG.Exclude,
		projectID: cfg.Project.ID,
		root:      root,
		log:       log,
	}
}

// ScanProject walks the project tree, compares file hashes against the
// index, and queues every change. Returns the number of queued entries.
func (m *Manager) ScanProject(ctx context.Context) (int, error) {
	known, err := m.store.KnownFileHashes(m.projectID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool)
	queued := 0
	err = filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !m.wantFile(rel) {
			return nil
		}
		seen[rel] = true

		var knownHash *string
		if h, ok := known[rel]; ok {
			knownHash = &h
		}
		kind, oldHash, newHash, err := DetectFileChanges(path, knownHash)
		if err != nil {
			m.log.Warn("change detection failed", zap.String("path", rel), zap.Error(err))
			return nil
		}
		if kind == store.ChangeUnchanged {
			return nil
		}

		content, _ := os.ReadFile(path)
		if err := m.store.EnqueueDelta(&store.DeltaEntry{
			ProjectID:    m.projectID,
			FilePath:     rel,
			ChangeKind:   kind,
			OldHash:      oldHash,
			NewHash:      newHash,
			LinesChanged: EstimateLinesChanged(kind, content),
		}); err != nil {
			return err
		}
		queued++
		return nil
	})
	if err != nil {
		return queued, fmt.Errorf("delta: scan: %w", err)
	}

	// Indexed files that vanished from disk queue as deletions.
	for rel, hash := range known {
		if seen[rel] {
			continue
		}
		h := hash
		if err := m.store.EnqueueDelta(&store.DeltaEntry{
			ProjectID:    m.projectID,
			FilePath:     rel,
			ChangeKind:   store.ChangeDeleted,
			OldHash:      &h,
			LinesChanged: deletedLineEstimate,
		}); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

func (m *Manager) wantFile(rel string) bool {
	if lang, _ := codegraph.LanguageForPath(rel); lang == "" {
		return false
	}
	for _, pattern := range m.exclude {
		if matchPattern(pattern, rel) {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, pattern := range m.include {
		if matchPattern(pattern, rel) {
			return true
		}
	}
	return false
}

func matchPattern(pattern, rel string) bool {
	if ok, _ := filepath.Match(pattern, rel); ok {
		return true
	}
	// "**/" prefixed patterns apply at any depth, including the root.
	if trimmed, ok := strings.CutPrefix(pattern, "**/"); ok {
		if m, _ := filepath.Match(trimmed, filepath.Base(rel)); m {
			return true
		}
	}
	if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
		return true
	}
	return strings.HasPrefix(rel, strings.TrimSuffix(pattern, "/")+"/")
}

// CheckThresholds reports whether the queue warrants a batch commit: at
// least file_threshold entries, or line_threshold total changed lines, or
// an entry older than the timeout.
func (m *Manager) CheckThresholds() (bool, error) {
	entries, err := m.store.QueuedDeltas(m.projectID)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	if len(entries) >= m.cfg.FileThreshold {
		return true, nil
	}
	lines := 0
	oldest := entries[0].QueuedAt
	for _, e := range entries {
		lines += e.LinesChanged
		if e.QueuedAt.Before(oldest) {
			oldest = e.QueuedAt
		}
	}
	if lines >= m.cfg.LineThreshold {
		return true, nil
	}
	return time.Since(oldest) >= time.Duration(m.cfg.TimeoutSeconds)*time.Second, nil
}

// PromoteForQuery raises queued entries matching the query to critical
// priority and returns the matched paths. No-op when JIT is disabled.
func (m *Manager) PromoteForQuery(query string) ([]string, error) {
	if !m.cfg.JITIndexing {
		return nil, nil
	}
	entries, err := m.store.QueuedDeltas(m.projectID)
	if err != nil {
		return nil, err
	}
	pending := make([]string, len(entries))
	for i, e := range entries {
		pending[i] = e.FilePath
	}

	matched := FilesMatchingQuery(query, pending)
	for _, path := range matched {
		if err := m.store.PromoteDelta(m.projectID, path, store.PriorityCritical); err != nil {
			return matched, err
		}
	}
	if len(matched) > 0 {
		m.log.Info("promoted files for query", zap.Strings("paths", matched))
	}
	return matched, nil
}

// CommitStats summarises one batch commit.
type CommitStats struct {
	Processed int
	Failed    int
}

// Commit drains the queue in priority order, re-indexing each file:
// existing rows are deleted, then the file is re-chunked, re-embedded,
// re-graphed, and its symbols re-derived. Failures are recorded per entry
// and do not abort the batch.
func (m *Manager) Commit(ctx context.Context) (CommitStats, error) {
	return m.commit(ctx, nil)
}

// CommitFiles commits only the queued entries for the given paths. Used
// by the just-in-time path after promotion.
func (m *Manager) CommitFiles(ctx context.Context, paths []string) (CommitStats, error) {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	return m.commit(ctx, want)
}

func (m *Manager) commit(ctx context.Context, only map[string]bool) (CommitStats, error) {
	var stats CommitStats
	entries, err := m.store.QueuedDeltas(m.projectID)
	if err != nil {
		return stats, err
	}

	for _, e := range entries {
		if only != nil && !only[e.FilePath] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := m.store.SetDeltaStatus(e.ID, store.DeltaRunning, nil); err != nil {
			return stats, err
		}

		if err := m.processEntry(ctx, e); err != nil {
			msg := err.Error()
			m.log.Warn("delta commit failed", zap.String("path", e.FilePath), zap.Error(err))
			if serr := m.store.SetDeltaStatus(e.ID, store.DeltaFailed, &msg); serr != nil {
				return stats, serr
			}
			stats.Failed++
			continue
		}
		if err := m.store.SetDeltaStatus(e.ID, store.DeltaDone, nil); err != nil {
			return stats, err
		}
		stats.Processed++
	}
	return stats, nil
}

func (m *Manager) processEntry(ctx context.Context, e store.DeltaEntry) error {
	if err := m.store.DeleteFileData(e.FilePath, m.projectID); err != nil {
		return err
	}
	if e.ChangeKind == store.ChangeDeleted {
		return nil
	}

	source, err := os.ReadFile(filepath.Join(m.root, filepath.FromSlash(e.FilePath)))
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	idx, err := m.builder.BuildFile(ctx, e.FilePath, source)
	if err != nil {
		return err
	}
	if len(idx.Chunks) > 0 {
		// Chunks carry the whole-file hash so the next scan can compare
		// against disk.
		fileHash := store.HashContent(source)
		for i := range idx.Chunks {
			idx.Chunks[i].FileHash = fileHash
		}
		if err := m.store.SaveChunks(idx.Chunks, m.projectID); err != nil {
			return err
		}
	}
	if len(idx.Nodes) > 0 || len(idx.Edges) > 0 {
		if err := m.store.SaveGraph(idx.Nodes, idx.Edges, m.projectID); err != nil {
			return err
		}
	}
	if symbols := symbolsFromNodes(idx); len(symbols) > 0 {
		if err := m.store.SaveSymbols(symbols, m.projectID); err != nil {
			return err
		}
	}
	m.embedChunks(ctx, e.FilePath)
	return nil
}

// embedChunks attaches embeddings to the freshly saved chunks of a file.
// Best-effort: indexing succeeds without embeddings when no key is set.
func (m *Manager) embedChunks(ctx context.Context, path string) {
	if m.embedder == nil || !m.embedder.Available() {
		return
	}
	chunks, err := m.store.GetChunksByFile(path, m.projectID)
	if err != nil {
		m.log.Warn("embed: load chunks", zap.String("path", path), zap.Error(err))
		return
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Body
	}
	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		m.log.Warn("embed: batch", zap.String("path", path), zap.Error(err))
		return
	}
	for i, emb := range embeddings {
		if i >= len(chunks) {
			break
		}
		blob := vector.Serialize(vector.Normalize(emb))
		if err := m.store.SetChunkEmbedding(chunks[i].ID, blob); err != nil {
			m.log.Warn("embed: save", zap.String("chunk", chunks[i].ID), zap.Error(err))
		}
	}
}

func symbolsFromNodes(idx *codegraph.FileIndex) []store.SymbolDefinition {
	symbols := make([]store.SymbolDefinition, 0, len(idx.Nodes))
	for _, n := range idx.Nodes {
		line := 0
		if n.Line != nil {
			line = *n.Line
		}
		symbols = append(symbols, store.SymbolDefinition{
			Name:      n.Name,
			FilePath:  n.FilePath,
			Line:      line,
			Kind:      n.Kind,
			Signature: n.Signature,
		})
	}
	return symbols
}
