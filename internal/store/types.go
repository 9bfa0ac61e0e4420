package store

import "time"

// Project is the root container for threads and indexed code.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// ThreadStatus enumerates thread lifecycle states.
type ThreadStatus string

const (
	ThreadActive    ThreadStatus = "active"
	ThreadArchived  ThreadStatus = "archived"
	ThreadRecovered ThreadStatus = "recovered"
)

// Thread is an ordered, append-only sequence of reasoning notes.
type Thread struct {
	ID        string
	ProjectID string
	Status    ThreadStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Node is a single immutable note within a thread. SequenceID increases
// strictly within the thread; PrevNodeID points at the previous node.
type Node struct {
	ID         string
	ThreadID   string
	SequenceID int
	Content    string
	Author     string
	PrevNodeID *string
	Embedding  []byte
	CreatedAt  time.Time
}

// SummaryCache holds the latest synthesised summary for a thread.
type SummaryCache struct {
	ThreadID    string
	Summary     string
	LastNodeID  string
	NodeCount   int
	Model       string
	TokensUsed  int
	GeneratedAt time.Time
}

// ChunkKind enumerates the granularity of an indexed code chunk.
type ChunkKind string

const (
	ChunkFunction ChunkKind = "function"
	ChunkClass    ChunkKind = "class"
	ChunkMethod   ChunkKind = "method"
	ChunkModule   ChunkKind = "module"
)

// CodeChunk is a unit of indexed source code with an optional embedding.
type CodeChunk struct {
	ID            string
	ProjectID     string
	FilePath      string
	FileHash      string
	Kind          ChunkKind
	Name          string
	QualifiedName string
	Language      string
	StartLine     int
	EndLine       int
	Imports       []string
	ClassContext  *string
	Signature     *string
	Decorators    []string
	Docstring     *string
	Body          string
	Embedding     []byte
	TokenCount    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CodeNode is a symbol in the code graph, keyed by qualified name.
type CodeNode struct {
	ID         string // qualified identifier
	ProjectID  string
	FilePath   string
	Kind       string // class, function, method
	Name       string
	Signature  *string
	Line       *int
	Docstring  *string
	Centrality *float64
}

// EdgeKind enumerates code graph relationships.
type EdgeKind string

const (
	EdgeCalls      EdgeKind = "calls"
	EdgeImports    EdgeKind = "imports"
	EdgeInherits   EdgeKind = "inherits"
	EdgeReferences EdgeKind = "references"
)

// CodeEdge is a directed relationship between two code graph nodes. The
// target may be an unresolved external symbol.
type CodeEdge struct {
	ID        string
	ProjectID string
	SourceID  string
	TargetID  string
	Kind      EdgeKind
	Line      *int
	Count     int
}

// SymbolDefinition is one entry from the external ctags index.
type SymbolDefinition struct {
	ID        string
	ProjectID string
	Name      string
	FilePath  string
	Line      int
	Kind      string
	Scope     *string
	Signature *string
	Language  string
}

// RepoMap is an append-only rendered map of a project's central symbols.
type RepoMap struct {
	ID              string
	ProjectID       string
	Scope           *string
	Content         string
	TokenCount      int
	BudgetUsed      int
	FilesIncluded   int
	SymbolsIncluded int
	SymbolsTotal    int
	CreatedAt       time.Time
}

// ConversationStatus enumerates Oracle conversation states.
type ConversationStatus string

const (
	ConversationActive     ConversationStatus = "active"
	ConversationCompressed ConversationStatus = "compressed"
	ConversationClosed     ConversationStatus = "closed"
)

// Exchange is one tool invocation within a conversation.
type Exchange struct {
	Tool       string    `json:"tool"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Insights   []string  `json:"insights,omitempty"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Conversation is a per-(project, user) Oracle session. The exchange list
// is persisted as a single JSON blob and always replaced wholesale.
type Conversation struct {
	ID                string
	ProjectID         string
	UserID            string
	TokenBudget       int
	TokensUsed        int
	CompressedSummary *string
	Exchanges         []Exchange
	Status            ConversationStatus
	LastActivity      time.Time
	ExpiresAt         time.Time
	CompressionCount  int
	MentionedSymbols  []string
	MentionedFiles    []string
}

// ChangeKind enumerates detected file changes.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeModified  ChangeKind = "modified"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeUnchanged ChangeKind = "unchanged"
)

// Delta queue priorities.
const (
	PriorityNormal   = 0
	PriorityHigh     = 1
	PriorityCritical = 2
)

// DeltaStatus enumerates queue entry states.
type DeltaStatus string

const (
	DeltaQueued  DeltaStatus = "queued"
	DeltaRunning DeltaStatus = "running"
	DeltaDone    DeltaStatus = "done"
	DeltaFailed  DeltaStatus = "failed"
)

// DeltaEntry is one queued file change awaiting re-indexing.
type DeltaEntry struct {
	ID           string
	ProjectID    string
	FilePath     string
	ChangeKind   ChangeKind
	OldHash      *string
	NewHash      *string
	LinesChanged int
	Priority     int
	Status       DeltaStatus
	Error        *string
	QueuedAt     time.Time
}

// ProjectStats summarises a project's index.
type ProjectStats struct {
	Chunks        int
	Nodes         int
	Edges         int
	Symbols       int
	Threads       int
	Conversations int
}
