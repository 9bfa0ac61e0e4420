package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// EnqueueDelta records a detected file change. Entries coalesce by
// (project, path) while queued: the newer change supersedes the older one
// and keeps the higher priority.
func (s *Store) EnqueueDelta(e *DeltaEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.QueuedAt.IsZero() {
		e.QueuedAt = time.Now().UTC()
	}
	e.Status = DeltaQueued

	_, err := s.db.Exec(`
		INSERT INTO index_delta_queue (id, project_id, file_path, change_kind, old_hash,
			new_hash, lines_changed, priority, status, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'queued', ?)
		ON CONFLICT(project_id, file_path) WHERE status = 'queued' DO UPDATE SET
			change_kind = excluded.change_kind,
			old_hash = excluded.old_hash,
			new_hash = excluded.new_hash,
			lines_changed = excluded.lines_changed,
			priority = MAX(index_delta_queue.priority, excluded.priority)`,
		e.ID, e.ProjectID, e.FilePath, string(e.ChangeKind), nullString(e.OldHash),
		nullString(e.NewHash), e.LinesChanged, e.Priority, e.QueuedAt,
	)
	return storeErr("enqueue_delta", err)
}

const deltaColumns = `id, project_id, file_path, change_kind, old_hash, new_hash,
	lines_changed, priority, status, error, queued_at`

func scanDelta(row interface{ Scan(...any) error }) (DeltaEntry, error) {
	var e DeltaEntry
	var kind, status string
	var oldHash, newHash, errMsg sql.NullString
	err := row.Scan(&e.ID, &e.ProjectID, &e.FilePath, &kind, &oldHash, &newHash,
		&e.LinesChanged, &e.Priority, &status, &errMsg, &e.QueuedAt)
	if err != nil {
		return e, err
	}
	e.ChangeKind = ChangeKind(kind)
	e.Status = DeltaStatus(status)
	e.OldHash = fromNullString(oldHash)
	e.NewHash = fromNullString(newHash)
	e.Error = fromNullString(errMsg)
	return e, nil
}

// QueuedDeltas returns queued entries ordered by priority desc then age.
func (s *Store) QueuedDeltas(projectID string) ([]DeltaEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+deltaColumns+` FROM index_delta_queue
		 WHERE project_id = ? AND status = 'queued'
		 ORDER BY priority DESC, queued_at ASC`,
		projectID,
	)
	if err != nil {
		return nil, storeErr("queued_deltas", err)
	}
	defer rows.Close()

	var entries []DeltaEntry
	for rows.Next() {
		e, err := scanDelta(rows)
		if err != nil {
			return nil, storeErr("queued_deltas", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetDeltaStatus transitions a queue entry, recording an error message for
// failures.
func (s *Store) SetDeltaStatus(id string, status DeltaStatus, errMsg *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE index_delta_queue SET status = ?, error = ? WHERE id = ?`,
		string(status), nullString(errMsg), id,
	)
	return storeErr("set_delta_status", err)
}

// PromoteDelta raises the priority of a queued entry for a file.
func (s *Store) PromoteDelta(projectID, filePath string, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE index_delta_queue SET priority = MAX(priority, ?)
		 WHERE project_id = ? AND file_path = ? AND status = 'queued'`,
		priority, projectID, filePath,
	)
	return storeErr("promote_delta", err)
}

// KnownFileHashes returns the current file hash per indexed file path, for
// change detection.
func (s *Store) KnownFileHashes(projectID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT file_path, MAX(file_hash) FROM code_chunks WHERE project_id = ? GROUP BY file_path`,
		projectID,
	)
	if err != nil {
		return nil, storeErr("known_file_hashes", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, storeErr("known_file_hashes", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}
