package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateConversation starts a new active conversation for (project, user).
func (s *Store) CreateConversation(projectID, userID string, tokenBudget int, ttl time.Duration) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	c := &Conversation{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		UserID:       userID,
		TokenBudget:  tokenBudget,
		Status:       ConversationActive,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
	}
	_, err := s.db.Exec(`
		INSERT INTO oracle_conversations (id, project_id, user_id, token_budget, tokens_used,
			exchanges, status, last_activity, expires_at, mentioned_symbols, mentioned_files)
		VALUES (?, ?, ?, ?, 0, '[]', ?, ?, ?, '[]', '[]')`,
		c.ID, c.ProjectID, c.UserID, c.TokenBudget, string(c.Status), c.LastActivity, c.ExpiresAt,
	)
	if err != nil {
		return nil, storeErr("create_conversation", err)
	}
	return c, nil
}

const conversationColumns = `id, project_id, user_id, token_budget, tokens_used,
	compressed_summary, exchanges, status, last_activity, expires_at,
	compression_count, mentioned_symbols, mentioned_files`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	var status, exchanges, symbols, files string
	var summary sql.NullString
	var expires sql.NullTime
	err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.TokenBudget, &c.TokensUsed,
		&summary, &exchanges, &status, &c.LastActivity, &expires,
		&c.CompressionCount, &symbols, &files)
	if err != nil {
		return nil, err
	}
	c.Status = ConversationStatus(status)
	c.CompressedSummary = fromNullString(summary)
	if expires.Valid {
		c.ExpiresAt = expires.Time
	}
	if err := json.Unmarshal([]byte(exchanges), &c.Exchanges); err != nil {
		return nil, fmt.Errorf("decode exchanges: %w", err)
	}
	c.MentionedSymbols = unmarshalList(symbols)
	c.MentionedFiles = unmarshalList(files)
	return &c, nil
}

// GetActiveConversation returns the most recent active conversation for
// (project, user) whose last activity falls within the expiry window, or
// ErrNotFound when a new session should be created.
func (s *Store) GetActiveConversation(projectID, userID string, window time.Duration) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-window)
	row := s.db.QueryRow(
		`SELECT `+conversationColumns+` FROM oracle_conversations
		 WHERE project_id = ? AND user_id = ? AND status IN ('active', 'compressed') AND last_activity >= ?
		 ORDER BY last_activity DESC LIMIT 1`,
		projectID, userID, cutoff,
	)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get_active_conversation", err)
	}
	return c, nil
}

// UpdateConversation replaces the conversation row, including the whole
// exchange blob. Exchange lists are never partially merged.
func (s *Store) UpdateConversation(c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exchanges, err := json.Marshal(c.Exchanges)
	if err != nil {
		return storeErr("update_conversation", fmt.Errorf("encode exchanges: %w", err))
	}
	if c.Exchanges == nil {
		exchanges = []byte("[]")
	}

	res, err := s.db.Exec(`
		UPDATE oracle_conversations SET
			token_budget = ?, tokens_used = ?, compressed_summary = ?, exchanges = ?,
			status = ?, last_activity = ?, expires_at = ?, compression_count = ?,
			mentioned_symbols = ?, mentioned_files = ?
		WHERE id = ?`,
		c.TokenBudget, c.TokensUsed, nullString(c.CompressedSummary), string(exchanges),
		string(c.Status), c.LastActivity, c.ExpiresAt, c.CompressionCount,
		marshalList(c.MentionedSymbols), marshalList(c.MentionedFiles), c.ID,
	)
	if err != nil {
		return storeErr("update_conversation", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return storeErr("update_conversation", fmt.Errorf("conversation %s: %w", c.ID, ErrNotFound))
	}
	return nil
}
