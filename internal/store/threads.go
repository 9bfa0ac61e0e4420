package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// CreateThread creates a new active thread under a project.
func (s *Store) CreateThread(projectID string) (*Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Thread{ID: uuid.NewString(), ProjectID: projectID, Status: ThreadActive}
	_, err := s.db.Exec(
		`INSERT INTO threads (id, project_id, status) VALUES (?, ?, ?)`,
		t.ID, t.ProjectID, string(t.Status),
	)
	if err != nil {
		return nil, storeErr("create_thread", err)
	}
	return t, nil
}

// GetThread returns a thread by id.
func (s *Store) GetThread(threadID string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t Thread
	var status string
	err := s.db.QueryRow(
		`SELECT id, project_id, status, created_at, updated_at FROM threads WHERE id = ?`,
		threadID,
	).Scan(&t.ID, &t.ProjectID, &status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_thread", err)
	}
	t.Status = ThreadStatus(status)
	return &t, nil
}

// ListThreads returns a project's threads, newest first.
func (s *Store) ListThreads(projectID string, limit int) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, project_id, status, created_at, updated_at
		 FROM threads WHERE project_id = ? ORDER BY updated_at DESC LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, storeErr("list_threads", err)
	}
	defer rows.Close()

	var threads []Thread
	for rows.Next() {
		var t Thread
		var status string
		if err := rows.Scan(&t.ID, &t.ProjectID, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, storeErr("list_threads", err)
		}
		t.Status = ThreadStatus(status)
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// AppendNode appends a node to a thread, assigning sequence_id = max+1 and
// linking prev_node_id to the previous tail. Nodes are immutable after
// creation; embeddings may be attached later.
func (s *Store) AppendNode(threadID, content, author string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := &Node{ID: uuid.NewString(), ThreadID: threadID, Content: content, Author: author}
	err := s.withTx("append_node", func(tx *sql.Tx) error {
		var prevID sql.NullString
		var maxSeq sql.NullInt64
		err := tx.QueryRow(
			`SELECT id, sequence_id FROM nodes WHERE thread_id = ? ORDER BY sequence_id DESC LIMIT 1`,
			threadID,
		).Scan(&prevID, &maxSeq)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		node.SequenceID = 1
		if maxSeq.Valid {
			node.SequenceID = int(maxSeq.Int64) + 1
		}
		node.PrevNodeID = fromNullString(prevID)

		_, err = tx.Exec(
			`INSERT INTO nodes (id, thread_id, sequence_id, content, author, prev_node_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			node.ID, node.ThreadID, node.SequenceID, node.Content, node.Author,
			nullString(node.PrevNodeID),
		)
		if err != nil {
			return fmt.Errorf("insert node: %w", err)
		}

		_, err = tx.Exec(`UPDATE threads SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

const nodeSelectColumns = `id, thread_id, sequence_id, content, author, prev_node_id, embedding, created_at`

func scanThreadNode(row interface{ Scan(...any) error }) (Node, error) {
	var n Node
	var prev sql.NullString
	err := row.Scan(&n.ID, &n.ThreadID, &n.SequenceID, &n.Content, &n.Author,
		&prev, &n.Embedding, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	n.PrevNodeID = fromNullString(prev)
	return n, nil
}

// GetNodes returns a thread's nodes in sequence order.
func (s *Store) GetNodes(threadID string) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+nodeSelectColumns+` FROM nodes WHERE thread_id = ? ORDER BY sequence_id ASC`,
		threadID,
	)
	if err != nil {
		return nil, storeErr("get_nodes", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanThreadNode(rows)
		if err != nil {
			return nil, storeErr("get_nodes", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// GetNode returns a single node by id.
func (s *Store) GetThreadNode(nodeID string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+nodeSelectColumns+` FROM nodes WHERE id = ?`, nodeID)
	n, err := scanThreadNode(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_thread_node", err)
	}
	return &n, nil
}

// LatestNode returns the greatest-sequence node of a thread, or ErrNotFound
// for an empty thread.
func (s *Store) LatestNode(threadID string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT `+nodeSelectColumns+` FROM nodes WHERE thread_id = ? ORDER BY sequence_id DESC LIMIT 1`,
		threadID,
	)
	n, err := scanThreadNode(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("latest_node", err)
	}
	return &n, nil
}

// NodesAfter returns nodes with sequence_id greater than seq, in order.
func (s *Store) NodesAfter(threadID string, seq int) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+nodeSelectColumns+` FROM nodes
		 WHERE thread_id = ? AND sequence_id > ? ORDER BY sequence_id ASC`,
		threadID, seq,
	)
	if err != nil {
		return nil, storeErr("nodes_after", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanThreadNode(rows)
		if err != nil {
			return nil, storeErr("nodes_after", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// EmbeddedNode is a thread node candidate for similarity search.
type EmbeddedNode struct {
	NodeID     string
	ThreadID   string
	SequenceID int
	Embedding  []byte
}

// NodesWithEmbeddings returns every node with an embedding across a
// project's threads.
func (s *Store) NodesWithEmbeddings(projectID string) ([]EmbeddedNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT n.id, n.thread_id, n.sequence_id, n.embedding
		 FROM nodes n JOIN threads t ON t.id = n.thread_id
		 WHERE t.project_id = ? AND n.embedding IS NOT NULL`,
		projectID,
	)
	if err != nil {
		return nil, storeErr("nodes_with_embeddings", err)
	}
	defer rows.Close()

	var out []EmbeddedNode
	for rows.Next() {
		var n EmbeddedNode
		if err := rows.Scan(&n.NodeID, &n.ThreadID, &n.SequenceID, &n.Embedding); err != nil {
			return nil, storeErr("nodes_with_embeddings", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SetNodeEmbedding attaches an embedding to an existing node. Content is
// immutable; the embedding is the only mutable column.
func (s *Store) SetNodeEmbedding(nodeID string, embedding []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE nodes SET embedding = ? WHERE id = ?`, embedding, nodeID)
	return storeErr("set_node_embedding", err)
}

// CountNodes returns the number of nodes in a thread.
func (s *Store) CountNodes(threadID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE thread_id = ?`, threadID).Scan(&count)
	if err != nil {
		return 0, storeErr("count_nodes", err)
	}
	return count, nil
}
