package store

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
)

// Outcome is a TestResult's per-test outcome. Always lowercase at the DB and
// JSON boundary.
type Outcome string

const (
	OutcomePassed   Outcome = "passed"
	OutcomeFailed   Outcome = "failed"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeTimedOut Outcome = "timedout"
)

// TestRun is a single execution of a test suite.
type TestRun struct {
	ID           string  `json:"id"`
	WorkspaceID  string  `json:"workspace_id"`
	CommitSHA    *string `json:"commit_sha,omitempty"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   *string `json:"finished_at,omitempty"`
	PassedCount  int     `json:"passed_count"`
	FailedCount  int     `json:"failed_count"`
	IgnoredCount int     `json:"ignored_count"`
	MetadataJSON *string `json:"metadata_json,omitempty"`
}

// TestResult is a per-test outcome within one run.
type TestResult struct {
	ID          string   `json:"id"`
	RunID       string   `json:"run_id"`
	SuiteName   string   `json:"suite_name"`
	TestName    string   `json:"test_name"`
	Outcome     Outcome  `json:"outcome"`
	DurationMS  *int64   `json:"duration_ms,omitempty"`
	OutputJSON  *string  `json:"output_json,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

// InsertTestRun creates a new run row, returning its generated id.
func (db *DB) InsertTestRun(r *TestRun) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := uuid.NewString()
	var commitSHA, finishedAt, metadata sql.NullString
	if r.CommitSHA != nil {
		commitSHA = sql.NullString{String: *r.CommitSHA, Valid: true}
	}
	if r.FinishedAt != nil {
		finishedAt = sql.NullString{String: *r.FinishedAt, Valid: true}
	}
	if r.MetadataJSON != nil {
		metadata = sql.NullString{String: *r.MetadataJSON, Valid: true}
	}

	_, err := db.conn.Exec(`
		INSERT INTO test_runs (id, workspace_id, commit_sha, started_at, finished_at, passed_count, failed_count, ignored_count, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.WorkspaceID, commitSHA, r.StartedAt, finishedAt, r.PassedCount, r.FailedCount, r.IgnoredCount, metadata,
	)
	if err != nil {
		return hinderr.Wrap(hinderr.DB, "insert test run", err)
	}
	r.ID = id
	return nil
}

// FinalizeTestRun sets finished_at and the three outcome counters on an
// existing run.
func (db *DB) FinalizeTestRun(runID, finishedAt string, passed, failed, ignored int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(`
		UPDATE test_runs SET finished_at = ?, passed_count = ?, failed_count = ?, ignored_count = ?
		WHERE id = ?`,
		finishedAt, passed, failed, ignored, runID,
	)
	if err != nil {
		return hinderr.Wrap(hinderr.DB, "finalize test run", err)
	}
	return nil
}

// InsertTestResults inserts all results in one transaction.
func (db *DB) InsertTestResults(results []*TestResult) error {
	if len(results) == 0 {
		return nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return hinderr.Wrap(hinderr.DB, "begin test result batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO test_results (id, run_id, suite_name, test_name, outcome, duration_ms, output_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return hinderr.Wrap(hinderr.DB, "prepare test result insert", err)
	}
	defer stmt.Close()

	for _, r := range results {
		id := uuid.NewString()
		now := nowRFC3339()
		var duration sql.NullInt64
		if r.DurationMS != nil {
			duration = sql.NullInt64{Int64: *r.DurationMS, Valid: true}
		}
		var output sql.NullString
		if r.OutputJSON != nil {
			output = sql.NullString{String: *r.OutputJSON, Valid: true}
		}
		if _, err := stmt.Exec(id, r.RunID, r.SuiteName, r.TestName, string(r.Outcome), duration, output, now); err != nil {
			return hinderr.Wrap(hinderr.DB, "insert test result", err)
		}
		r.ID = id
		r.CreatedAt = now
	}
	if err := tx.Commit(); err != nil {
		return hinderr.Wrap(hinderr.DB, "commit test result batch", err)
	}
	return nil
}

// MarshalMetadata is a small helper so ingestors don't each reimplement
// "marshal a map to a metadata_json string".
func MarshalMetadata(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, hinderr.Wrap(hinderr.JSONParse, "marshal metadata", err)
	}
	s := string(b)
	return &s, nil
}
