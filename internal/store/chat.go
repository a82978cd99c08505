package store

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
)

// Role is a CopilotMessage's speaker. Always lowercase at the DB and JSON
// boundary.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// CopilotSession groups the messages of one AI coding-assistant chat,
// upserted by natural key (workspace_id, external_session_id).
type CopilotSession struct {
	ID                 string  `json:"id"`
	WorkspaceID        string  `json:"workspace_id"`
	ExternalSessionID  string  `json:"external_session_id"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
	MetadataJSON       *string `json:"metadata_json,omitempty"`
}

// CopilotMessage is a single role-tagged message within a session.
type CopilotMessage struct {
	ID            string  `json:"id"`
	SessionID     string  `json:"session_id"`
	RequestID     *string `json:"request_id,omitempty"`
	Role          Role    `json:"role"`
	Content       string  `json:"content"`
	VariablesJSON *string `json:"variables_json,omitempty"`
	Timestamp     string  `json:"timestamp"`
	CreatedAt     string  `json:"created_at"`
}

// UpsertCopilotSession inserts or updates a session by its natural key
// (workspace_id, external_session_id), preserving created_at across
// re-ingestion.
func (db *DB) UpsertCopilotSession(s *CopilotSession) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var metadata sql.NullString
	if s.MetadataJSON != nil {
		metadata = sql.NullString{String: *s.MetadataJSON, Valid: true}
	}

	var existingID, existingCreatedAt string
	err := db.conn.QueryRow(`
		SELECT id, created_at FROM copilot_sessions WHERE workspace_id = ? AND external_session_id = ?`,
		s.WorkspaceID, s.ExternalSessionID,
	).Scan(&existingID, &existingCreatedAt)

	now := nowRFC3339()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := uuid.NewString()
		_, err := db.conn.Exec(`
			INSERT INTO copilot_sessions (id, workspace_id, external_session_id, created_at, updated_at, metadata_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, s.WorkspaceID, s.ExternalSessionID, now, now, metadata,
		)
		if err != nil {
			return hinderr.Wrap(hinderr.DB, "insert copilot session", err)
		}
		s.ID, s.CreatedAt, s.UpdatedAt = id, now, now
		return nil
	case err != nil:
		return hinderr.Wrap(hinderr.DB, "lookup copilot session", err)
	default:
		_, err := db.conn.Exec(`UPDATE copilot_sessions SET updated_at = ?, metadata_json = ? WHERE id = ?`, now, metadata, existingID)
		if err != nil {
			return hinderr.Wrap(hinderr.DB, "update copilot session", err)
		}
		s.ID, s.CreatedAt, s.UpdatedAt = existingID, existingCreatedAt, now
		return nil
	}
}

// InsertCopilotMessages inserts all messages in one transaction.
func (db *DB) InsertCopilotMessages(messages []*CopilotMessage) error {
	if len(messages) == 0 {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return hinderr.Wrap(hinderr.DB, "begin copilot message batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO copilot_messages (id, session_id, request_id, role, content, variables_json, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return hinderr.Wrap(hinderr.DB, "prepare copilot message insert", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		id := uuid.NewString()
		now := nowRFC3339()
		var requestID, variables sql.NullString
		if m.RequestID != nil {
			requestID = sql.NullString{String: *m.RequestID, Valid: true}
		}
		if m.VariablesJSON != nil {
			variables = sql.NullString{String: *m.VariablesJSON, Valid: true}
		}
		if _, err := stmt.Exec(id, m.SessionID, requestID, string(m.Role), m.Content, variables, m.Timestamp, now); err != nil {
			return hinderr.Wrap(hinderr.DB, "insert copilot message", err)
		}
		m.ID = id
		m.CreatedAt = now
	}
	if err := tx.Commit(); err != nil {
		return hinderr.Wrap(hinderr.DB, "commit copilot message batch", err)
	}
	return nil
}
