package store

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
)

// DiffFile is one file's change within a commit's diff summary.
// Insertions/Deletions are always 0: only the DiffSummary aggregate carries
// real line counts, per-file counts are not computed.
type DiffFile struct {
	Path       string `json:"path"`
	Status     string `json:"status"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
}

// DiffSummary is the aggregate + per-file diff of a commit against its
// first parent (or the empty tree for a root commit).
type DiffSummary struct {
	FilesChanged int        `json:"files_changed"`
	Insertions   int        `json:"insertions"`
	Deletions    int        `json:"deletions"`
	Files        []DiffFile `json:"files"`
}

// Commit is a single version-control commit, upserted by natural key
// (workspace_id, sha).
type Commit struct {
	ID          string       `json:"id"`
	WorkspaceID string       `json:"workspace_id"`
	SHA         string       `json:"sha"`
	Author      string       `json:"author"`
	AuthorEmail *string      `json:"author_email,omitempty"`
	Message     string       `json:"message"`
	Timestamp   string       `json:"timestamp"`
	Parents     []string     `json:"-"`
	Diff        *DiffSummary `json:"-"`
	CreatedAt   string       `json:"created_at"`
}

// IsMerge reports whether the commit has two or more parents.
func (c *Commit) IsMerge() bool { return len(c.Parents) >= 2 }

// UpsertCommit inserts or updates a commit by its natural key
// (workspace_id, sha). Re-ingesting the same commit updates mutable
// metadata but preserves created_at.
func (db *DB) UpsertCommit(c *Commit) error {
	parentsJSON, err := json.Marshal(c.Parents)
	if err != nil {
		return hinderr.Wrap(hinderr.JSONParse, "marshal commit parents", err)
	}
	var diffJSON sql.NullString
	if c.Diff != nil {
		b, err := json.Marshal(c.Diff)
		if err != nil {
			return hinderr.Wrap(hinderr.JSONParse, "marshal commit diff", err)
		}
		diffJSON = sql.NullString{String: string(b), Valid: true}
	}
	var authorEmail sql.NullString
	if c.AuthorEmail != nil {
		authorEmail = sql.NullString{String: *c.AuthorEmail, Valid: true}
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	existingID, existingCreatedAt, err := db.existingCommitLocked(c.WorkspaceID, c.SHA)
	if err != nil {
		return err
	}

	if existingID != "" {
		_, err := db.conn.Exec(`
			UPDATE commits SET author = ?, author_email = ?, message = ?, timestamp = ?, parents_json = ?, diff_json = ?
			WHERE id = ?`,
			c.Author, authorEmail, c.Message, c.Timestamp, string(parentsJSON), diffJSON, existingID,
		)
		if err != nil {
			return hinderr.Wrap(hinderr.DB, "update commit", err)
		}
		c.ID = existingID
		c.CreatedAt = existingCreatedAt
		return nil
	}

	id := uuid.NewString()
	now := nowRFC3339()
	_, err = db.conn.Exec(`
		INSERT INTO commits (id, workspace_id, sha, author, author_email, message, timestamp, parents_json, diff_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.WorkspaceID, c.SHA, c.Author, authorEmail, c.Message, c.Timestamp, string(parentsJSON), diffJSON, now,
	)
	if err != nil {
		return hinderr.Wrap(hinderr.DB, "insert commit", err)
	}
	c.ID = id
	c.CreatedAt = now
	return nil
}

func (db *DB) existingCommitLocked(workspaceID, sha string) (id string, createdAt string, err error) {
	err = db.conn.QueryRow(`SELECT id, created_at FROM commits WHERE workspace_id = ? AND sha = ?`, workspaceID, sha).Scan(&id, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return id, createdAt, nil
}

// CommitBySHAPrefix returns the first commit (by timestamp desc) whose sha
// starts with prefix, in the given workspace, or nil if none.
func (db *DB) CommitBySHAPrefix(workspaceID, prefix string) (*Commit, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := `SELECT id, workspace_id, sha, author, author_email, message, timestamp, parents_json, diff_json, created_at
		FROM commits WHERE sha LIKE ? || '%'`
	args := []any{prefix}
	if workspaceID != "" {
		query += ` AND workspace_id = ?`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY timestamp DESC LIMIT 1`

	row := db.conn.QueryRow(query, args...)
	c, err := scanCommit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func scanCommit(row *sql.Row) (*Commit, error) {
	var c Commit
	var authorEmail, diffJSON sql.NullString
	var parentsJSON string
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.SHA, &c.Author, &authorEmail, &c.Message, &c.Timestamp, &parentsJSON, &diffJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	if authorEmail.Valid {
		c.AuthorEmail = &authorEmail.String
	}
	if err := json.Unmarshal([]byte(parentsJSON), &c.Parents); err != nil {
		return nil, hinderr.Wrap(hinderr.JSONParse, "unmarshal commit parents", err)
	}
	if diffJSON.Valid {
		var d DiffSummary
		if err := json.Unmarshal([]byte(diffJSON.String), &d); err != nil {
			return nil, hinderr.Wrap(hinderr.JSONParse, "unmarshal commit diff", err)
		}
		c.Diff = &d
	}
	return &c, nil
}
