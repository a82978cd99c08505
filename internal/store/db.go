// Package store implements the embedded relational database: schema,
// full-text search indexes, derived views, and the migration ledger, plus
// the upsert and query operations layered on top of it.
package store

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a single SQLite connection behind a mutex. All mutating AND
// reading operations take the same lock: the store is not
// concurrent-read/write at the core level.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// OpenPathOptions configures OpenPathWithOptions.
type OpenPathOptions struct {
	// SkipInit skips running the migration ledger on open. The caller is
	// responsible for the schema already being at the version its queries
	// expect; this exists for the --skip-init CLI flag, not for normal use.
	SkipInit bool
}

// OpenPath opens (creating if necessary) the database file at path, enables
// foreign keys and WAL mode, and runs the migration ledger to the latest
// version.
func OpenPath(path string) (*DB, error) {
	return OpenPathWithOptions(path, OpenPathOptions{})
}

// OpenPathWithOptions is OpenPath with control over whether the migration
// ledger runs on open.
func OpenPathWithOptions(path string, opts OpenPathOptions) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	db := &DB{conn: conn}
	if opts.SkipInit {
		return db, nil
	}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens an in-memory database, migrated to the latest version.
// Used by tests; a shared cache name keeps it visible to the pool's single
// connection across queries.
func OpenMemory() (*DB, error) {
	conn, err := sql.Open("sqlite3", "file::memory:?cache=shared&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	db := &DB{conn: conn}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Version returns the current schema version, or 0 if the ledger table
// itself is absent.
func (db *DB) Version() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.versionLocked()
}

func (db *DB) versionLocked() (int, error) {
	var exists int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var version sql.NullInt64
	if err := db.conn.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// Migrate applies all migrations with version greater than the current
// version, each inside its own transaction. Re-running Migrate on an
// up-to-date database is a no-op.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	current, err := db.versionLocked()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	sorted := make([]migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].version < sorted[j].version })

	for _, m := range sorted {
		if m.version <= current {
			continue
		}
		if err := db.applyLocked(m.up, m.version, m.name); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (db *DB) applyLocked(script string, version int, name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, datetime('now'))`, version, name); err != nil {
		return err
	}
	return tx.Commit()
}

// RollbackTo applies each migration's down script, in descending version
// order, until the ledger's recorded version equals target.
func (db *DB) RollbackTo(target int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	current, err := db.versionLocked()
	if err != nil {
		return err
	}
	if target > current {
		return fmt.Errorf("rollback target %d is ahead of current version %d", target, current)
	}

	sorted := make([]migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].version > sorted[j].version })

	for _, m := range sorted {
		if m.version <= target || m.version > current {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.down); err != nil {
			tx.Rollback()
			return fmt.Errorf("rollback migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(`DELETE FROM schema_migrations WHERE version = ?`, m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// FTSAvailable reports whether the FTS5 virtual tables exist, as a
// diagnostic for callers that want to confirm the engine build supports it.
func (db *DB) FTSAvailable() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('commits_fts', 'copilot_messages_fts')`).Scan(&count)
	return err == nil && count == 2
}

// IntegrityCheck runs SQLite's built-in integrity check.
func (db *DB) IntegrityCheck() (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var result string
	if err := db.conn.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return "", err
	}
	return result, nil
}
