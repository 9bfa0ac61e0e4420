package store

import "database/sql"

// GetSummaryCache returns the cached summary for a thread, or ErrNotFound.
func (s *Store) GetSummaryCache(threadID string) (*SummaryCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c SummaryCache
	err := s.db.QueryRow(
		`SELECT thread_id, summary, last_node_id, node_count, model, tokens_used, generated_at
		 FROM thread_summary_cache WHERE thread_id = ?`,
		threadID,
	).Scan(&c.ThreadID, &c.Summary, &c.LastNodeID, &c.NodeCount, &c.Model, &c.TokensUsed, &c.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_summary_cache", err)
	}
	return &c, nil
}

// UpsertSummaryCache inserts or replaces the summary cache row for a thread.
func (s *Store) UpsertSummaryCache(c *SummaryCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO thread_summary_cache (thread_id, summary, last_node_id, node_count, model, tokens_used, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(thread_id) DO UPDATE SET
			summary = excluded.summary,
			last_node_id = excluded.last_node_id,
			node_count = excluded.node_count,
			model = excluded.model,
			tokens_used = excluded.tokens_used,
			generated_at = CURRENT_TIMESTAMP`,
		c.ThreadID, c.Summary, c.LastNodeID, c.NodeCount, c.Model, c.TokensUsed,
	)
	return storeErr("upsert_summary_cache", err)
}

// DeleteSummaryCache removes the cache row for a thread. Used on explicit
// invalidation only.
func (s *Store) DeleteSummaryCache(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM thread_summary_cache WHERE thread_id = ?`, threadID)
	return storeErr("delete_summary_cache", err)
}
