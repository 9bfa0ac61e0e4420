package store

// Schema DDL. Statements are idempotent; migrate runs them all at open.
// The FTS5 mirror is maintained explicitly (not contentless) because chunk
// ids are opaque strings.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_threads_project ON threads(project_id)`,

	`CREATE TABLE IF NOT EXISTS nodes (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		sequence_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		prev_node_id TEXT,
		embedding BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(thread_id, sequence_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_thread ON nodes(thread_id, sequence_id)`,

	`CREATE TABLE IF NOT EXISTS thread_summary_cache (
		thread_id TEXT NOT NULL,
		summary TEXT NOT NULL,
		last_node_id TEXT NOT NULL,
		node_count INTEGER NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		generated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_summary_thread ON thread_summary_cache(thread_id)`,

	`CREATE TABLE IF NOT EXISTS states (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		name TEXT NOT NULL,
		UNIQUE(thread_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS "references" (
		id TEXT PRIMARY KEY,
		node_id TEXT NOT NULL,
		target TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS code_chunks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		language TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		imports TEXT,
		class_context TEXT,
		signature TEXT,
		decorators TEXT,
		docstring TEXT,
		body TEXT NOT NULL,
		embedding BLOB,
		token_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_project_file ON code_chunks(project_id, file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_project_name ON code_chunks(project_id, name)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS code_chunk_fts USING fts5(
		chunk_id UNINDEXED,
		name,
		qualified_name,
		signature,
		docstring,
		body,
		tokenize = 'porter unicode61'
	)`,

	`CREATE TABLE IF NOT EXISTS code_nodes (
		id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		signature TEXT,
		line INTEGER,
		docstring TEXT,
		centrality_score REAL,
		PRIMARY KEY (project_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_code_nodes_project_file ON code_nodes(project_id, file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_code_nodes_project_name ON code_nodes(project_id, name)`,
	`CREATE INDEX IF NOT EXISTS idx_code_nodes_centrality ON code_nodes(project_id, centrality_score DESC)`,

	`CREATE TABLE IF NOT EXISTS code_edges (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		line INTEGER,
		count INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_code_edges_source ON code_edges(source_id)`,
	`CREATE INDEX IF NOT EXISTS idx_code_edges_target ON code_edges(target_id)`,

	`CREATE TABLE IF NOT EXISTS symbol_definitions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		line INTEGER NOT NULL,
		kind TEXT NOT NULL,
		scope TEXT,
		signature TEXT,
		language TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_project_name ON symbol_definitions(project_id, name)`,
	`CREATE INDEX IF NOT EXISTS idx_symbols_project_file ON symbol_definitions(project_id, file_path)`,

	`CREATE TABLE IF NOT EXISTS repo_maps (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		scope TEXT,
		content TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		budget_used INTEGER NOT NULL,
		files_included INTEGER NOT NULL,
		symbols_included INTEGER NOT NULL,
		symbols_total INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_repo_maps_project ON repo_maps(project_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS oracle_sessions (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS oracle_conversations (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		token_budget INTEGER NOT NULL,
		tokens_used INTEGER NOT NULL DEFAULT 0,
		compressed_summary TEXT,
		exchanges TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT 'active',
		last_activity DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME,
		compression_count INTEGER NOT NULL DEFAULT 0,
		mentioned_symbols TEXT NOT NULL DEFAULT '[]',
		mentioned_files TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_project_user ON oracle_conversations(project_id, user_id, last_activity DESC)`,

	`CREATE TABLE IF NOT EXISTS index_delta_queue (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		change_kind TEXT NOT NULL,
		old_hash TEXT,
		new_hash TEXT,
		lines_changed INTEGER NOT NULL DEFAULT 0,
		priority INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'queued',
		error TEXT,
		queued_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_delta_project_path_queued ON index_delta_queue(project_id, file_path) WHERE status = 'queued'`,
	`CREATE INDEX IF NOT EXISTS idx_delta_project_status ON index_delta_queue(project_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_delta_priority ON index_delta_queue(project_id, priority DESC, queued_at ASC)`,
}

func (s *Store) migrate() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}
