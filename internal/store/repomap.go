package store

import (
	"database/sql"

	"github.com/google/uuid"
)

// SaveRepoMap appends a rendered repo map. Rows are append-only; consumers
// take the most recent for (project, scope).
func (s *Store) SaveRepoMap(m *RepoMap, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ProjectID = projectID
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO repo_maps (id, project_id, scope, content, token_count, budget_used,
			files_included, symbols_included, symbols_total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, nullString(m.Scope), m.Content, m.TokenCount,
		m.BudgetUsed, m.FilesIncluded, m.SymbolsIncluded, m.SymbolsTotal,
	)
	return storeErr("save_repo_map", err)
}

// GetRepoMap returns the latest repo map for (project, scope). A nil scope
// selects maps rendered without a scope filter.
func (s *Store) GetRepoMap(projectID string, scope *string) (*RepoMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row *sql.Row
	if scope == nil {
		row = s.db.QueryRow(`
			SELECT id, project_id, scope, content, token_count, budget_used,
				files_included, symbols_included, symbols_total, created_at
			FROM repo_maps WHERE project_id = ? AND scope IS NULL
			ORDER BY created_at DESC LIMIT 1`, projectID)
	} else {
		row = s.db.QueryRow(`
			SELECT id, project_id, scope, content, token_count, budget_used,
				files_included, symbols_included, symbols_total, created_at
			FROM repo_maps WHERE project_id = ? AND scope = ?
			ORDER BY created_at DESC LIMIT 1`, projectID, *scope)
	}

	var m RepoMap
	var sc sql.NullString
	err := row.Scan(&m.ID, &m.ProjectID, &sc, &m.Content, &m.TokenCount,
		&m.BudgetUsed, &m.FilesIncluded, &m.SymbolsIncluded, &m.SymbolsTotal, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_repo_map", err)
	}
	m.Scope = fromNullString(sc)
	return &m, nil
}
