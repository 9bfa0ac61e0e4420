package store

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// HashContent returns the 32-hex MD5 of content, the hash used for chunk
// file hashes and delta detection.
func HashContent(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}

// SaveChunks inserts a batch of chunks for a project in one transaction,
// maintaining the FTS5 mirror alongside. A chunk's file hash is computed
// from its body when not supplied; a missing ID is generated.
func (s *Store) SaveChunks(chunks []CodeChunk, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx("save_chunks", func(tx *sql.Tx) error {
		for i := range chunks {
			c := &chunks[i]
			c.ProjectID = projectID
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			if c.FileHash == "" {
				c.FileHash = HashContent([]byte(c.Body))
			}
			if c.TokenCount == 0 {
				c.TokenCount = len(c.Body) / 4
			}

			_, err := tx.Exec(`
				INSERT INTO code_chunks (
					id, project_id, file_path, file_hash, kind, name, qualified_name,
					language, start_line, end_line, imports, class_context, signature,
					decorators, docstring, body, embedding, token_count
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.ProjectID, c.FilePath, c.FileHash, string(c.Kind), c.Name,
				c.QualifiedName, c.Language, c.StartLine, c.EndLine,
				marshalList(c.Imports), nullString(c.ClassContext), nullString(c.Signature),
				marshalList(c.Decorators), nullString(c.Docstring), c.Body,
				c.Embedding, c.TokenCount,
			)
			if err != nil {
				return fmt.Errorf("insert chunk %s: %w", c.QualifiedName, err)
			}

			_, err = tx.Exec(`
				INSERT INTO code_chunk_fts (chunk_id, name, qualified_name, signature, docstring, body)
				VALUES (?, ?, ?, ?, ?, ?)`,
				c.ID, c.Name, c.QualifiedName,
				deref(c.Signature), deref(c.Docstring), c.Body,
			)
			if err != nil {
				return fmt.Errorf("insert fts row for %s: %w", c.QualifiedName, err)
			}
		}
		return nil
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const chunkColumns = `id, project_id, file_path, file_hash, kind, name, qualified_name,
	language, start_line, end_line, imports, class_context, signature, decorators,
	docstring, body, embedding, token_count, created_at, updated_at`

func scanChunk(row interface{ Scan(...any) error }) (CodeChunk, error) {
	var c CodeChunk
	var kind, imports, decorators string
	var classContext, signature, docstring sql.NullString
	err := row.Scan(&c.ID, &c.ProjectID, &c.FilePath, &c.FileHash, &kind, &c.Name,
		&c.QualifiedName, &c.Language, &c.StartLine, &c.EndLine, &imports,
		&classContext, &signature, &decorators, &docstring, &c.Body, &c.Embedding,
		&c.TokenCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Kind = ChunkKind(kind)
	c.Imports = unmarshalList(imports)
	c.Decorators = unmarshalList(decorators)
	c.ClassContext = fromNullString(classContext)
	c.Signature = fromNullString(signature)
	c.Docstring = fromNullString(docstring)
	return c, nil
}

// GetChunksByFile returns a file's chunks ordered by start line.
func (s *Store) GetChunksByFile(path, projectID string) ([]CodeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT `+chunkColumns+` FROM code_chunks
		 WHERE project_id = ? AND file_path = ? ORDER BY start_line ASC`,
		projectID, path,
	)
	if err != nil {
		return nil, storeErr("get_chunks_by_file", err)
	}
	defer rows.Close()

	var chunks []CodeChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, storeErr("get_chunks_by_file", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunk returns one chunk by id.
func (s *Store) GetChunk(id string) (*CodeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+chunkColumns+` FROM code_chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_chunk", err)
	}
	return &c, nil
}

// EmbeddedChunk pairs a chunk id with its embedding blob for in-process
// similarity scans.
type EmbeddedChunk struct {
	ID        string
	Embedding []byte
}

// ChunksWithEmbeddings returns the (id, embedding) pairs of every chunk in
// the project with a non-null embedding.
func (s *Store) ChunksWithEmbeddings(projectID string) ([]EmbeddedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, embedding FROM code_chunks
		 WHERE project_id = ? AND embedding IS NOT NULL`,
		projectID,
	)
	if err != nil {
		return nil, storeErr("chunks_with_embeddings", err)
	}
	defer rows.Close()

	var out []EmbeddedChunk
	for rows.Next() {
		var e EmbeddedChunk
		if err := rows.Scan(&e.ID, &e.Embedding); err != nil {
			return nil, storeErr("chunks_with_embeddings", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FTSHit is one lexical match with its raw FTS rank (already negated so
// larger is better).
type FTSHit struct {
	Chunk CodeChunk
	Rank  float64
}

// SearchChunksFTS runs an FTS5 MATCH over the chunk mirror and joins back
// to the chunk rows. The match string must already be sanitised.
func (s *Store) SearchChunksFTS(projectID, match string, limit int) ([]FTSHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT `+prefixColumns("c", chunkColumns)+`, -f.rank AS score
		 FROM code_chunk_fts f
		 JOIN code_chunks c ON c.id = f.chunk_id
		 WHERE code_chunk_fts MATCH ? AND c.project_id = ?
		 ORDER BY f.rank
		 LIMIT ?`,
		match, projectID, limit,
	)
	if err != nil {
		return nil, storeErr("search_chunks_fts", err)
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		var h FTSHit
		var kind, imports, decorators string
		var classContext, signature, docstring sql.NullString
		err := rows.Scan(&h.Chunk.ID, &h.Chunk.ProjectID, &h.Chunk.FilePath,
			&h.Chunk.FileHash, &kind, &h.Chunk.Name, &h.Chunk.QualifiedName,
			&h.Chunk.Language, &h.Chunk.StartLine, &h.Chunk.EndLine, &imports,
			&classContext, &signature, &decorators, &docstring, &h.Chunk.Body,
			&h.Chunk.Embedding, &h.Chunk.TokenCount, &h.Chunk.CreatedAt,
			&h.Chunk.UpdatedAt, &h.Rank)
		if err != nil {
			return nil, storeErr("search_chunks_fts", err)
		}
		h.Chunk.Kind = ChunkKind(kind)
		h.Chunk.Imports = unmarshalList(imports)
		h.Chunk.Decorators = unmarshalList(decorators)
		h.Chunk.ClassContext = fromNullString(classContext)
		h.Chunk.Signature = fromNullString(signature)
		h.Chunk.Docstring = fromNullString(docstring)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SetChunkEmbedding attaches an embedding to an existing chunk.
func (s *Store) SetChunkEmbedding(chunkID string, embedding []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE code_chunks SET embedding = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		embedding, chunkID)
	return storeErr("set_chunk_embedding", err)
}
