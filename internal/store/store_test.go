package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureProject(Project{ID: "proj", Name: "Test"}))
	return s
}

func strptr(s string) *string { return &s }

func TestAppendNodeSequence(t *testing.T) {
	s := newTestStore(t)
	th, err := s.CreateThread("proj")
	require.NoError(t, err)

	n1, err := s.AppendNode(th.ID, "first", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, n1.SequenceID)
	assert.Nil(t, n1.PrevNodeID)

	n2, err := s.AppendNode(th.ID, "second", "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, n2.SequenceID)
	require.NotNil(t, n2.PrevNodeID)
	assert.Equal(t, n1.ID, *n2.PrevNodeID)

	n3, err := s.AppendNode(th.ID, "third", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n3.SequenceID)
	require.NotNil(t, n3.PrevNodeID)
	assert.Equal(t, n2.ID, *n3.PrevNodeID)

	nodes, err := s.GetNodes(th.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	for i, n := range nodes {
		assert.Equal(t, i+1, n.SequenceID)
	}

	latest, err := s.LatestNode(th.ID)
	require.NoError(t, err)
	assert.Equal(t, n3.ID, latest.ID)
}

func TestSaveChunksComputesHash(t *testing.T) {
	s := newTestStore(t)
	chunks := []CodeChunk{{
		FilePath:      "src/auth.py",
		Kind:          ChunkFunction,
		Name:          "authenticate_user",
		QualifiedName: "src.auth.authenticate_user",
		Language:      "python",
		StartLine:     10,
		EndLine:       30,
		Body:          "def authenticate_user(token):\n    return check(token)\n",
	}}
	require.NoError(t, s.SaveChunks(chunks, "proj"))

	got, err := s.GetChunksByFile("src/auth.py", "proj")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].FileHash, 32)
	assert.Equal(t, HashContent([]byte(chunks[0].Body)), got[0].FileHash)
	assert.Greater(t, got[0].TokenCount, 0)
}

func TestGetChunksByFileOrdering(t *testing.T) {
	s := newTestStore(t)
	chunks := []CodeChunk{
		{FilePath: "a.py", Kind: ChunkFunction, Name: "late", QualifiedName: "a.late", Language: "python", StartLine: 50, EndLine: 60, Body: "def late(): pass"},
		{FilePath: "a.py", Kind: ChunkFunction, Name: "early", QualifiedName: "a.early", Language: "python", StartLine: 1, EndLine: 10, Body: "def early(): pass"},
	}
	require.NoError(t, s.SaveChunks(chunks, "proj"))

	got, err := s.GetChunksByFile("a.py", "proj")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].Name)
	assert.Equal(t, "late", got[1].Name)
}

func TestSearchChunksFTS(t *testing.T) {
	s := newTestStore(t)
	chunks := []CodeChunk{
		{FilePath: "auth.py", Kind: ChunkFunction, Name: "authenticate_user", QualifiedName: "auth.authenticate_user", Language: "python", StartLine: 1, EndLine: 5, Body: "def authenticate_user(token): validate bearer token"},
		{FilePath: "db.py", Kind: ChunkFunction, Name: "connect", QualifiedName: "db.connect", Language: "python", StartLine: 1, EndLine: 5, Body: "def connect(): open database session"},
	}
	require.NoError(t, s.SaveChunks(chunks, "proj"))

	hits, err := s.SearchChunksFTS("proj", "authenticate", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "authenticate_user", hits[0].Chunk.Name)
	assert.Greater(t, hits[0].Rank, 0.0)
}

func TestDeleteFileData(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChunks([]CodeChunk{
		{FilePath: "auth.py", Kind: ChunkFunction, Name: "login", QualifiedName: "auth.login", Language: "python", StartLine: 1, EndLine: 5, Body: "def login(): pass"},
	}, "proj"))
	line := 1
	require.NoError(t, s.SaveGraph(
		[]CodeNode{
			{ID: "auth.login", FilePath: "auth.py", Kind: "function", Name: "login", Line: &line},
			{ID: "main.run", FilePath: "main.py", Kind: "function", Name: "run", Line: &line},
		},
		[]CodeEdge{
			{SourceID: "auth.login", TargetID: "db.connect", Kind: EdgeCalls},
			{SourceID: "main.run", TargetID: "auth.login", Kind: EdgeCalls},
		},
		"proj",
	))
	require.NoError(t, s.SaveSymbols([]SymbolDefinition{
		{Name: "login", FilePath: "auth.py", Line: 1, Kind: "function", Language: "python"},
	}, "proj"))

	require.NoError(t, s.DeleteFileData("auth.py", "proj"))

	chunks, err := s.GetChunksByFile("auth.py", "proj")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	hits, err := s.SearchChunksFTS("proj", "login", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = s.GetNode("proj", "auth.login")
	assert.ErrorIs(t, err, ErrNotFound)

	// Edges into the deleted file from other files survive; only edges
	// sourced in the file are removed.
	edges, err := s.AllEdges("proj")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "main.run", edges[0].SourceID)

	syms, err := s.FindSymbolsByName("proj", "login", 10)
	require.NoError(t, err)
	assert.Empty(t, syms)
}

func TestRepoMapLatestByScope(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveRepoMap(&RepoMap{Content: "old", TokenCount: 1}, "proj"))
	require.NoError(t, s.SaveRepoMap(&RepoMap{Content: "scoped", TokenCount: 1, Scope: strptr("src/")}, "proj"))
	time.Sleep(1100 * time.Millisecond) // CURRENT_TIMESTAMP has second resolution
	require.NoError(t, s.SaveRepoMap(&RepoMap{Content: "new", TokenCount: 1}, "proj"))

	m, err := s.GetRepoMap("proj", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", m.Content)

	scoped, err := s.GetRepoMap("proj", strptr("src/"))
	require.NoError(t, err)
	assert.Equal(t, "scoped", scoped.Content)
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	th, err := s.CreateThread("proj")
	require.NoError(t, err)

	_, err = s.GetSummaryCache(th.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	cache := &SummaryCache{ThreadID: th.ID, Summary: "sum", LastNodeID: "n1", NodeCount: 3, Model: "test"}
	require.NoError(t, s.UpsertSummaryCache(cache))

	got, err := s.GetSummaryCache(th.ID)
	require.NoError(t, err)
	assert.Equal(t, "sum", got.Summary)
	assert.Equal(t, 3, got.NodeCount)

	cache.Summary = "sum2"
	cache.NodeCount = 5
	require.NoError(t, s.UpsertSummaryCache(cache))
	got, err = s.GetSummaryCache(th.ID)
	require.NoError(t, err)
	assert.Equal(t, "sum2", got.Summary)
	assert.Equal(t, 5, got.NodeCount)

	require.NoError(t, s.DeleteSummaryCache(th.ID))
	_, err = s.GetSummaryCache(th.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeltaQueueCoalesces(t *testing.T) {
	s := newTestStore(t)
	old := "aaaa"
	mid := "bbbb"
	newer := "cccc"

	require.NoError(t, s.EnqueueDelta(&DeltaEntry{
		ProjectID: "proj", FilePath: "a.py", ChangeKind: ChangeModified,
		OldHash: &old, NewHash: &mid, LinesChanged: 10, Priority: PriorityHigh,
	}))
	require.NoError(t, s.EnqueueDelta(&DeltaEntry{
		ProjectID: "proj", FilePath: "a.py", ChangeKind: ChangeModified,
		OldHash: &mid, NewHash: &newer, LinesChanged: 20, Priority: PriorityNormal,
	}))

	entries, err := s.QueuedDeltas("proj")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, newer, *entries[0].NewHash)
	// Priority keeps the maximum of the coalesced entries.
	assert.Equal(t, PriorityHigh, entries[0].Priority)
}

func TestDeltaQueueOrderingAndStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnqueueDelta(&DeltaEntry{ProjectID: "proj", FilePath: "a.py", ChangeKind: ChangeAdded, LinesChanged: 5}))
	require.NoError(t, s.EnqueueDelta(&DeltaEntry{ProjectID: "proj", FilePath: "b.py", ChangeKind: ChangeAdded, LinesChanged: 5, Priority: PriorityCritical}))

	entries, err := s.QueuedDeltas("proj")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b.py", entries[0].FilePath)

	require.NoError(t, s.SetDeltaStatus(entries[0].ID, DeltaDone, nil))
	entries, err = s.QueuedDeltas("proj")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.py", entries[0].FilePath)

	msg := "boom"
	require.NoError(t, s.SetDeltaStatus(entries[0].ID, DeltaFailed, &msg))
	entries, err = s.QueuedDeltas("proj")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPromoteDelta(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnqueueDelta(&DeltaEntry{ProjectID: "proj", FilePath: "a.py", ChangeKind: ChangeModified}))
	require.NoError(t, s.PromoteDelta("proj", "a.py", PriorityCritical))

	entries, err := s.QueuedDeltas("proj")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, PriorityCritical, entries[0].Priority)
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetActiveConversation("proj", "u1", 24*time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := s.CreateConversation("proj", "u1", 16000, 24*time.Hour)
	require.NoError(t, err)

	c.Exchanges = append(c.Exchanges, Exchange{
		Tool: "ask_oracle", Input: "q", Output: "a", TokenCount: 12, Timestamp: time.Now().UTC(),
	})
	c.TokensUsed = 12
	c.MentionedSymbols = []string{"AuthService"}
	c.MentionedFiles = []string{"src/auth.py"}
	require.NoError(t, s.UpdateConversation(c))

	got, err := s.GetActiveConversation("proj", "u1", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	require.Len(t, got.Exchanges, 1)
	assert.Equal(t, "ask_oracle", got.Exchanges[0].Tool)
	assert.Equal(t, []string{"AuthService"}, got.MentionedSymbols)
	assert.Equal(t, []string{"src/auth.py"}, got.MentionedFiles)
}

func TestProjectStats(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveChunks([]CodeChunk{
		{FilePath: "a.py", Kind: ChunkFunction, Name: "f", QualifiedName: "a.f", Language: "python", StartLine: 1, EndLine: 2, Body: "def f(): pass"},
	}, "proj"))
	_, err := s.CreateThread("proj")
	require.NoError(t, err)

	stats, err := s.GetProjectStats("proj")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Threads)
	assert.Equal(t, 0, stats.Edges)
}
