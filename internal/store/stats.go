package store

// EnsureProject inserts or updates the project row.
func (s *Store) EnsureProject(p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO projects (id, name, description) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description`,
		p.ID, p.Name, p.Description,
	)
	return storeErr("ensure_project", err)
}

// GetProjectStats returns index and memory counts for a project.
func (s *Store) GetProjectStats(projectID string) (*ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &ProjectStats{}
	queries := []struct {
		dest  *int
		query string
	}{
		{&stats.Chunks, `SELECT COUNT(*) FROM code_chunks WHERE project_id = ?`},
		{&stats.Nodes, `SELECT COUNT(*) FROM code_nodes WHERE project_id = ?`},
		{&stats.Edges, `SELECT COUNT(*) FROM code_edges WHERE project_id = ?`},
		{&stats.Symbols, `SELECT COUNT(*) FROM symbol_definitions WHERE project_id = ?`},
		{&stats.Threads, `SELECT COUNT(*) FROM threads WHERE project_id = ?`},
		{&stats.Conversations, `SELECT COUNT(*) FROM oracle_conversations WHERE project_id = ?`},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query, projectID).Scan(q.dest); err != nil {
			return nil, storeErr("get_project_stats", err)
		}
	}
	return stats, nil
}
