package delta

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlt/internal/codegraph"
	"vlt/internal/config"
	"vlt/internal/store"
)

func TestDetectFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.py")
	require.NoError(t, os.WriteFile(path, []byte("def login(): pass\n"), 0o644))

	kind, oldHash, newHash, err := DetectFileChanges(path, nil)
	require.NoError(t, err)
	assert.Equal(t, store.ChangeAdded, kind)
	assert.Nil(t, oldHash)
	require.NotNil(t, newHash)
	assert.Len(t, *newHash, 32)

	known := *newHash
	kind, _, _, err = DetectFileChanges(path, &known)
	require.NoError(t, err)
	assert.Equal(t, store.ChangeUnchanged, kind)

	require.NoError(t, os.WriteFile(path, []byte("def login(): return 1\n"), 0o644))
	kind, oldHash, newHash, err = DetectFileChanges(path, &known)
	require.NoError(t, err)
	assert.Equal(t, store.ChangeModified, kind)
	assert.Equal(t, known, *oldHash)
	assert.NotEqual(t, known, *newHash)

	require.NoError(t, os.Remove(path))
	kind, oldHash, newHash, err = DetectFileChanges(path, &known)
	require.NoError(t, err)
	assert.Equal(t, store.ChangeDeleted, kind)
	assert.Equal(t, known, *oldHash)
	assert.Nil(t, newHash)
}

func TestEstimateLinesChanged(t *testing.T) {
	content := []byte("a\nb\nc\nd\ne\nf\ng\nh\n")
	assert.Equal(t, 8, EstimateLinesChanged(store.ChangeAdded, content))
	assert.Equal(t, 2, EstimateLinesChanged(store.ChangeModified, content))
	assert.Equal(t, 100, EstimateLinesChanged(store.ChangeDeleted, nil))
	assert.Equal(t, 0, EstimateLinesChanged(store.ChangeUnchanged, content))
}

func TestFilesMatchingQuery(t *testing.T) {
	pending := []string{"src/auth.py", "src/user.py", "src/util.py"}

	matched := FilesMatchingQuery("Where is authenticate in auth.py used?", pending)
	assert.Equal(t, []string{"src/auth.py"}, matched)

	matched = FilesMatchingQuery("look at src/user.py please", pending)
	assert.Equal(t, []string{"src/user.py"}, matched)

	// Snake_case identifiers match file stems.
	matched = FilesMatchingQuery("what does util_helpers do", []string{"lib/util_helpers.py", "lib/other.py"})
	assert.Equal(t, []string{"lib/util_helpers.py"}, matched)

	assert.Empty(t, FilesMatchingQuery("how does caching work", pending))
}

func newTestManager(t *testing.T) (*Manager, *store.Store, string) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsureProject(store.Project{ID: "proj", Name: "Test"}))

	root := t.TempDir()
	cfg := config.Default()
	cfg.Project.ID = "proj"
	cfg.Project.Name = "Test"

	m := NewManager(st, codegraph.NewBuilder(nil), nil, cfg, root, nil)
	return m, st, root
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanAndCommit(t *testing.T) {
	m, st, root := newTestManager(t)
	writeSource(t, root, "src/auth.py", "def login(token):\n    return token\n")
	writeSource(t, root, "src/util.py", "def pad(s):\n    return s\n")
	writeSource(t, root, "README.md", "# not code\n")

	queued, err := m.ScanProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	stats, err := m.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Zero(t, stats.Failed)

	chunks, err := st.GetChunksByFile("src/auth.py", "proj")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "src.auth.login", chunks[0].QualifiedName)

	syms, err := st.FindSymbolsByName("proj", "login", 10)
	require.NoError(t, err)
	require.Len(t, syms, 1)

	// Re-scan with no edits queues nothing.
	queued, err = m.ScanProject(context.Background())
	require.NoError(t, err)
	assert.Zero(t, queued)

	// A deleted file queues a deletion and the commit clears its rows.
	require.NoError(t, os.Remove(filepath.Join(root, "src/auth.py")))
	queued, err = m.ScanProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	stats, err = m.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	chunks, err = st.GetChunksByFile("src/auth.py", "proj")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCheckThresholds(t *testing.T) {
	m, st, _ := newTestManager(t)

	ok, err := m.CheckThresholds()
	require.NoError(t, err)
	assert.False(t, ok)

	// Below both file and line thresholds.
	require.NoError(t, st.EnqueueDelta(&store.DeltaEntry{ProjectID: "proj", FilePath: "a.py", ChangeKind: store.ChangeModified, LinesChanged: 10}))
	ok, err = m.CheckThresholds()
	require.NoError(t, err)
	assert.False(t, ok)

	// Line threshold trips.
	require.NoError(t, st.EnqueueDelta(&store.DeltaEntry{ProjectID: "proj", FilePath: "b.py", ChangeKind: store.ChangeModified, LinesChanged: 995}))
	ok, err = m.CheckThresholds()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckThresholdsFileCount(t *testing.T) {
	m, st, _ := newTestManager(t)
	files := []string{"a.py", "b.py", "c.py", "d.py", "e.py"}
	for _, f := range files {
		require.NoError(t, st.EnqueueDelta(&store.DeltaEntry{ProjectID: "proj", FilePath: f, ChangeKind: store.ChangeModified, LinesChanged: 1}))
	}
	ok, err := m.CheckThresholds()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJITPromotionAndSubsetCommit(t *testing.T) {
	m, st, root := newTestManager(t)
	for _, rel := range []string{"src/auth.py", "src/user.py", "src/util.py"} {
		writeSource(t, root, rel, "def f():\n    pass\n")
		require.NoError(t, st.EnqueueDelta(&store.DeltaEntry{ProjectID: "proj", FilePath: rel, ChangeKind: store.ChangeAdded, LinesChanged: 2}))
	}

	matched, err := m.PromoteForQuery("Where is authenticate in auth.py used?")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/auth.py"}, matched)

	// Thresholds stay untripped: three files, few lines, fresh queue.
	ok, err := m.CheckThresholds()
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := st.QueuedDeltas("proj")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "src/auth.py", entries[0].FilePath)
	assert.Equal(t, store.PriorityCritical, entries[0].Priority)

	stats, err := m.CommitFiles(context.Background(), matched)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	entries, err = st.QueuedDeltas("proj")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
