package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// SaveGraph replaces or inserts the given code nodes and appends edges for
// a project in one transaction.
func (s *Store) SaveGraph(nodes []CodeNode, edges []CodeEdge, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx("save_graph", func(tx *sql.Tx) error {
		for i := range nodes {
			n := &nodes[i]
			n.ProjectID = projectID
			_, err := tx.Exec(`
				INSERT INTO code_nodes (id, project_id, file_path, kind, name, signature, line, docstring, centrality_score)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(project_id, id) DO UPDATE SET
					file_path = excluded.file_path,
					kind = excluded.kind,
					name = excluded.name,
					signature = excluded.signature,
					line = excluded.line,
					docstring = excluded.docstring,
					centrality_score = excluded.centrality_score`,
				n.ID, n.ProjectID, n.FilePath, n.Kind, n.Name,
				nullString(n.Signature), nullInt(n.Line), nullString(n.Docstring),
				nullFloat(n.Centrality),
			)
			if err != nil {
				return fmt.Errorf("insert node %s: %w", n.ID, err)
			}
		}
		for i := range edges {
			e := &edges[i]
			e.ProjectID = projectID
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.Count == 0 {
				e.Count = 1
			}
			_, err := tx.Exec(`
				INSERT INTO code_edges (id, project_id, source_id, target_id, kind, line, count)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.ProjectID, e.SourceID, e.TargetID, string(e.Kind),
				nullInt(e.Line), e.Count,
			)
			if err != nil {
				return fmt.Errorf("insert edge %s -> %s: %w", e.SourceID, e.TargetID, err)
			}
		}
		return nil
	})
}

const nodeColumns = `id, project_id, file_path, kind, name, signature, line, docstring, centrality_score`

func scanNode(row interface{ Scan(...any) error }) (CodeNode, error) {
	var n CodeNode
	var signature, docstring sql.NullString
	var line sql.NullInt64
	var centrality sql.NullFloat64
	err := row.Scan(&n.ID, &n.ProjectID, &n.FilePath, &n.Kind, &n.Name,
		&signature, &line, &docstring, &centrality)
	if err != nil {
		return n, err
	}
	n.Signature = fromNullString(signature)
	n.Line = fromNullInt(line)
	n.Docstring = fromNullString(docstring)
	n.Centrality = fromNullFloat(centrality)
	return n, nil
}

// FindNodesByName returns graph nodes whose short name matches exactly.
func (s *Store) FindNodesByName(projectID, name string, limit int) ([]CodeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT `+nodeColumns+` FROM code_nodes WHERE project_id = ? AND name = ? LIMIT ?`,
		projectID, name, limit,
	)
	if err != nil {
		return nil, storeErr("find_nodes_by_name", err)
	}
	defer rows.Close()

	var nodes []CodeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, storeErr("find_nodes_by_name", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// EdgesByTarget returns edges whose target matches the symbol, resolving
// references to a name in any qualification.
func (s *Store) EdgesByTarget(projectID, symbol string, limit int) ([]CodeEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, project_id, source_id, target_id, kind, line, count
		 FROM code_edges
		 WHERE project_id = ? AND (target_id = ? OR target_id LIKE ?)
		 LIMIT ?`,
		projectID, symbol, "%."+symbol, limit,
	)
	if err != nil {
		return nil, storeErr("edges_by_target", err)
	}
	defer rows.Close()

	var edges []CodeEdge
	for rows.Next() {
		var e CodeEdge
		var kind string
		var line sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SourceID, &e.TargetID, &kind, &line, &e.Count); err != nil {
			return nil, storeErr("edges_by_target", err)
		}
		e.Kind = EdgeKind(kind)
		e.Line = fromNullInt(line)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// AllNodes returns every graph node of a project, for repo-map generation.
func (s *Store) AllNodes(projectID string) ([]CodeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+nodeColumns+` FROM code_nodes WHERE project_id = ? ORDER BY file_path, line`,
		projectID,
	)
	if err != nil {
		return nil, storeErr("all_nodes", err)
	}
	defer rows.Close()

	var nodes []CodeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, storeErr("all_nodes", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// AllEdges returns every edge of a project, for repo-map centrality.
func (s *Store) AllEdges(projectID string) ([]CodeEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, project_id, source_id, target_id, kind, line, count
		 FROM code_edges WHERE project_id = ?`, projectID,
	)
	if err != nil {
		return nil, storeErr("all_edges", err)
	}
	defer rows.Close()

	var edges []CodeEdge
	for rows.Next() {
		var e CodeEdge
		var kind string
		var line sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SourceID, &e.TargetID, &kind, &line, &e.Count); err != nil {
			return nil, storeErr("all_edges", err)
		}
		e.Kind = EdgeKind(kind)
		e.Line = fromNullInt(line)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetNode returns one graph node by qualified id.
func (s *Store) GetNode(projectID, id string) (*CodeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT `+nodeColumns+` FROM code_nodes WHERE project_id = ? AND id = ?`,
		projectID, id,
	)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_node", err)
	}
	return &n, nil
}
