package store

import "database/sql"

// DeleteFileData removes all indexed data derived from one file in a
// single transaction: code chunks (and their FTS rows), code nodes, code
// edges whose source belongs to the file, and symbol definitions. The
// delta manager calls this before re-indexing a changed file.
func (s *Store) DeleteFileData(path, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx("delete_file_data", func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			DELETE FROM code_chunk_fts WHERE chunk_id IN (
				SELECT id FROM code_chunks WHERE project_id = ? AND file_path = ?
			)`, projectID, path); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`DELETE FROM code_chunks WHERE project_id = ? AND file_path = ?`,
			projectID, path); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			DELETE FROM code_edges WHERE project_id = ? AND source_id IN (
				SELECT id FROM code_nodes WHERE project_id = ? AND file_path = ?
			)`, projectID, projectID, path); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`DELETE FROM code_nodes WHERE project_id = ? AND file_path = ?`,
			projectID, path); err != nil {
			return err
		}
		if _, err := tx.Exec(
			`DELETE FROM symbol_definitions WHERE project_id = ? AND file_path = ?`,
			projectID, path); err != nil {
			return err
		}
		return nil
	})
}
