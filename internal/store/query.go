package store

import (
	"database/sql"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
)

// TimelineEvent is a uniform projection of commits, test runs, and chat
// messages onto (type, id, workspace_id, timestamp, summary).
type TimelineEvent struct {
	EventType      string  `json:"event_type"`
	EventID        string  `json:"event_id"`
	WorkspaceID    string  `json:"workspace_id"`
	EventTimestamp string  `json:"event_timestamp"`
	Summary        string  `json:"summary"`
	DetailsJSON    *string `json:"details_json,omitempty"`
}

// Timeline queries the timeline view ordered by event_timestamp DESC,
// limited, optionally filtered to one workspace.
func (db *DB) Timeline(limit int, workspaceFilter string) ([]TimelineEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	workspaceID, matched, err := db.ResolveWorkspaceFilter(workspaceFilter)
	if err != nil {
		return nil, err
	}
	if workspaceFilter != "" && !matched {
		return []TimelineEvent{}, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	query := `SELECT event_type, event_id, workspace_id, event_timestamp, summary, details_json FROM timeline`
	args := []any{}
	if matched {
		query += ` WHERE workspace_id = ?`
		args = append(args, workspaceID)
	}
	query += ` ORDER BY event_timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, hinderr.Wrap(hinderr.DB, "query timeline", err)
	}
	defer rows.Close()

	events := []TimelineEvent{}
	for rows.Next() {
		var e TimelineEvent
		var details sql.NullString
		if err := rows.Scan(&e.EventType, &e.EventID, &e.WorkspaceID, &e.EventTimestamp, &e.Summary, &details); err != nil {
			return nil, hinderr.Wrap(hinderr.DB, "scan timeline row", err)
		}
		if details.Valid {
			e.DetailsJSON = &details.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// FailingTest is one row of the failing_tests view.
type FailingTest struct {
	TestName   string  `json:"test_name"`
	SuiteName  string  `json:"suite_name"`
	FullName   string  `json:"full_name"`
	DurationMS *int64  `json:"duration_ms,omitempty"`
	OutputJSON *string `json:"output_json,omitempty"`
	RunID      string  `json:"run_id"`
	CommitSHA  *string `json:"commit_sha,omitempty"`
	StartedAt  string  `json:"started_at"`
}

// FailingTests reads the failing_tests view, optionally filtered by
// workspace (joined through test_runs) and by commit sha prefix.
func (db *DB) FailingTests(limit int, workspaceFilter, commitPrefix string) ([]FailingTest, error) {
	if limit <= 0 {
		limit = 20
	}

	workspaceID, matched, err := db.ResolveWorkspaceFilter(workspaceFilter)
	if err != nil {
		return nil, err
	}
	if workspaceFilter != "" && !matched {
		return []FailingTest{}, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	query := `
		SELECT f.test_name, f.suite_name, f.full_name, f.duration_ms, f.output_json, f.run_id, f.commit_sha, f.started_at
		FROM failing_tests f`
	var joins, wheres []string
	args := []any{}
	if matched {
		joins = append(joins, `JOIN test_runs tr ON tr.id = f.run_id`)
		wheres = append(wheres, `tr.workspace_id = ?`)
		args = append(args, workspaceID)
	}
	if commitPrefix != "" {
		wheres = append(wheres, `f.commit_sha LIKE ? || '%'`)
		args = append(args, commitPrefix)
	}
	for _, j := range joins {
		query += " " + j
	}
	for i, w := range wheres {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += ` ORDER BY f.started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, hinderr.Wrap(hinderr.DB, "query failing tests", err)
	}
	defer rows.Close()

	results := []FailingTest{}
	for rows.Next() {
		var f FailingTest
		var duration sql.NullInt64
		var output, commitSHA sql.NullString
		if err := rows.Scan(&f.TestName, &f.SuiteName, &f.FullName, &duration, &output, &f.RunID, &commitSHA, &f.StartedAt); err != nil {
			return nil, hinderr.Wrap(hinderr.DB, "scan failing test row", err)
		}
		if duration.Valid {
			f.DurationMS = &duration.Int64
		}
		if output.Valid {
			f.OutputJSON = &output.String
		}
		if commitSHA.Valid {
			f.CommitSHA = &commitSHA.String
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// ActivitySummary is four scalar counts over a trailing window.
type ActivitySummary struct {
	Days            int `json:"days"`
	Commits         int `json:"commits"`
	TestRuns        int `json:"test_runs"`
	CopilotSessions int `json:"copilot_sessions"`
	FailingTests    int `json:"failing_tests"`
}

// ActivitySummary computes four scalar counts over the last `days` days.
func (db *DB) ActivitySummary(days int) (*ActivitySummary, error) {
	if days <= 0 {
		days = 7
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	cutoffExpr := "datetime('now', printf('-%d days', ?))"

	s := &ActivitySummary{Days: days}

	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM commits WHERE timestamp >= `+cutoffExpr, days).Scan(&s.Commits); err != nil {
		return nil, hinderr.Wrap(hinderr.DB, "count commits", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM test_runs WHERE started_at >= `+cutoffExpr, days).Scan(&s.TestRuns); err != nil {
		return nil, hinderr.Wrap(hinderr.DB, "count test runs", err)
	}
	// copilot_sessions uses created_at, not updated_at: updated_at bumps on
	// every re-ingestion of an existing session, which would miscount a
	// session created outside the window but re-ingested inside it.
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM copilot_sessions WHERE created_at >= `+cutoffExpr, days).Scan(&s.CopilotSessions); err != nil {
		return nil, hinderr.Wrap(hinderr.DB, "count copilot sessions", err)
	}
	if err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM test_results r JOIN test_runs t ON t.id = r.run_id
		WHERE r.outcome IN ('failed', 'timedout') AND t.started_at >= `+cutoffExpr, days).Scan(&s.FailingTests); err != nil {
		return nil, hinderr.Wrap(hinderr.DB, "count failing tests", err)
	}
	return s, nil
}

// CommitWithTests is a commit plus the test runs associated with it by
// exact sha match, newest first.
type CommitWithTests struct {
	Commit    *Commit    `json:"commit"`
	Files     []string   `json:"files"`
	TestRuns  []*TestRun `json:"test_runs"`
}

// CommitDetails prefix-matches commits.sha, returning the newest matching
// commit (if any) with its associated file list and test runs.
func (db *DB) CommitDetails(sha string) (*CommitWithTests, error) {
	c, err := db.CommitBySHAPrefix("", sha)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	var files []string
	if c.Diff != nil {
		for _, f := range c.Diff.Files {
			files = append(files, f.Path)
		}
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	rows, err := db.conn.Query(`
		SELECT id, workspace_id, commit_sha, started_at, finished_at, passed_count, failed_count, ignored_count, metadata_json
		FROM test_runs WHERE commit_sha = ? ORDER BY started_at DESC`, c.SHA)
	if err != nil {
		return nil, hinderr.Wrap(hinderr.DB, "query test runs for commit", err)
	}
	defer rows.Close()

	var runs []*TestRun
	for rows.Next() {
		var r TestRun
		var commitSHA, finishedAt, metadata sql.NullString
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &commitSHA, &r.StartedAt, &finishedAt, &r.PassedCount, &r.FailedCount, &r.IgnoredCount, &metadata); err != nil {
			return nil, hinderr.Wrap(hinderr.DB, "scan test run row", err)
		}
		if commitSHA.Valid {
			r.CommitSHA = &commitSHA.String
		}
		if finishedAt.Valid {
			r.FinishedAt = &finishedAt.String
		}
		if metadata.Valid {
			r.MetadataJSON = &metadata.String
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &CommitWithTests{Commit: c, Files: files, TestRuns: runs}, nil
}
