package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
)

// Workspace is the root entity: a single on-disk project directory whose
// history is aggregated.
type Workspace struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// EnsureWorkspace looks up a workspace by path, creating it if absent. name
// defaults to the base name of path when empty.
func (db *DB) EnsureWorkspace(path, name string) (*Workspace, error) {
	if ws, err := db.WorkspaceByPath(path); err == nil && ws != nil {
		return ws, nil
	} else if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = filepath.Base(path)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	now := nowRFC3339()
	id := uuid.NewString()
	_, err := db.conn.Exec(`
		INSERT INTO workspaces (id, name, path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, name, path, now, now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, hinderr.Wrap(hinderr.DB, "workspace path already registered", err)
		}
		return nil, hinderr.Wrap(hinderr.DB, "insert workspace", err)
	}
	return &Workspace{ID: id, Name: name, Path: path, CreatedAt: now, UpdatedAt: now}, nil
}

// WorkspaceByPath returns the workspace with the given path, or nil if none.
func (db *DB) WorkspaceByPath(path string) (*Workspace, error) {
	return db.scanOneWorkspace(`SELECT id, name, path, created_at, updated_at FROM workspaces WHERE path = ?`, path)
}

// WorkspaceByID returns the workspace with the given id, or nil if none.
func (db *DB) WorkspaceByID(id string) (*Workspace, error) {
	return db.scanOneWorkspace(`SELECT id, name, path, created_at, updated_at FROM workspaces WHERE id = ?`, id)
}

func (db *DB) scanOneWorkspace(query string, arg string) (*Workspace, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var w Workspace
	err := db.conn.QueryRow(query, arg).Scan(&w.ID, &w.Name, &w.Path, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ResolveWorkspaceFilter implements §4.5.1: the filter argument may be a
// filesystem path or a workspace id. It resolves to an id, or ("", false)
// when neither lookup matches (the caller should yield "no rows", not an
// error).
func (db *DB) ResolveWorkspaceFilter(filter string) (string, bool, error) {
	if filter == "" {
		return "", false, nil
	}
	if ws, err := db.WorkspaceByPath(filter); err != nil {
		return "", false, err
	} else if ws != nil {
		return ws.ID, true, nil
	}
	if ws, err := db.WorkspaceByID(filter); err != nil {
		return "", false, err
	} else if ws != nil {
		return ws.ID, true, nil
	}
	return "", false, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
