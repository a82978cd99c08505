package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	version, err := db.Version()
	require.NoError(t, err)
	require.Equal(t, len(migrations), version)

	require.NoError(t, db.Migrate())
	versionAgain, err := db.Version()
	require.NoError(t, err)
	require.Equal(t, version, versionAgain)
}

func TestRollbackToZeroThenReapply(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RollbackTo(0))
	version, err := db.Version()
	require.NoError(t, err)
	require.Equal(t, 0, version)

	require.NoError(t, db.Migrate())
	version, err = db.Version()
	require.NoError(t, err)
	require.Equal(t, len(migrations), version)
}

func TestEmptyDBTimeline(t *testing.T) {
	db := openTestDB(t)
	events, err := db.Timeline(10, "")
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestActivitySummaryBaseline(t *testing.T) {
	db := openTestDB(t)
	summary, err := db.ActivitySummary(7)
	require.NoError(t, err)
	require.Equal(t, &ActivitySummary{Days: 7}, summary)
}

func TestWorkspaceEnsureIsIdempotentByPath(t *testing.T) {
	db := openTestDB(t)
	ws1, err := db.EnsureWorkspace("/my/workspace", "")
	require.NoError(t, err)
	require.Equal(t, "workspace", ws1.Name)

	ws2, err := db.EnsureWorkspace("/my/workspace", "ignored name")
	require.NoError(t, err)
	require.Equal(t, ws1.ID, ws2.ID)
}

func TestDuplicateWorkspacePathRejected(t *testing.T) {
	db := openTestDB(t)
	db.mu.Lock()
	_, err := db.conn.Exec(`INSERT INTO workspaces (id, name, path, created_at, updated_at) VALUES ('a', 'a', '/p', 'x', 'x')`)
	require.NoError(t, err)
	_, err = db.conn.Exec(`INSERT INTO workspaces (id, name, path, created_at, updated_at) VALUES ('b', 'b', '/p', 'y', 'y')`)
	db.mu.Unlock()
	require.Error(t, err)

	var name string
	require.NoError(t, db.conn.QueryRow(`SELECT name FROM workspaces WHERE path = '/p'`).Scan(&name))
	require.Equal(t, "a", name)
}

func TestUpsertCommitIsIdempotentByNaturalKey(t *testing.T) {
	db := openTestDB(t)
	ws, err := db.EnsureWorkspace("/w", "w")
	require.NoError(t, err)

	c := &Commit{WorkspaceID: ws.ID, SHA: "abc1234", Author: "a", Message: "first", Timestamp: "2024-01-01T00:00:00Z", Parents: []string{}}
	require.NoError(t, db.UpsertCommit(c))
	firstID, firstCreated := c.ID, c.CreatedAt

	c2 := &Commit{WorkspaceID: ws.ID, SHA: "abc1234", Author: "a", Message: "first amended", Timestamp: "2024-01-02T00:00:00Z", Parents: []string{}}
	require.NoError(t, db.UpsertCommit(c2))
	require.Equal(t, firstID, c2.ID)
	require.Equal(t, firstCreated, c2.CreatedAt)

	var count int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM commits WHERE workspace_id = ? AND sha = ?`, ws.ID, "abc1234").Scan(&count))
	require.Equal(t, 1, count)
}

func TestIsMerge(t *testing.T) {
	c := &Commit{Parents: []string{"a"}}
	require.False(t, c.IsMerge())
	c.Parents = []string{"a", "b"}
	require.True(t, c.IsMerge())
}

func TestSearchCommitMessage(t *testing.T) {
	db := openTestDB(t)
	ws, err := db.EnsureWorkspace("/w", "w")
	require.NoError(t, err)
	c := &Commit{WorkspaceID: ws.ID, SHA: "abcabcabcd", Author: "a", Message: "Fix important bug in parser", Timestamp: "2024-01-01T00:00:00Z", Parents: []string{}}
	require.NoError(t, db.UpsertCommit(c))

	results, err := db.Search("parser", SearchCommits, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Snippet, "<mark>parser</mark>")
}

func TestFailingTestsView(t *testing.T) {
	db := openTestDB(t)
	ws, err := db.EnsureWorkspace("/w", "w")
	require.NoError(t, err)

	run := &TestRun{WorkspaceID: ws.ID, StartedAt: "2024-01-01T00:00:00Z", PassedCount: 5, FailedCount: 2}
	require.NoError(t, db.InsertTestRun(run))
	require.NoError(t, db.InsertTestResults([]*TestResult{
		{RunID: run.ID, SuiteName: "hindsight-mcp", TestName: "test_x", Outcome: OutcomeFailed},
	}))

	rows, err := db.FailingTests(10, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "hindsight-mcp", rows[0].SuiteName)
	require.Equal(t, "test_x", rows[0].FullName)
}

func TestWorkspacePathVsIDResolveIdentically(t *testing.T) {
	db := openTestDB(t)
	ws, err := db.EnsureWorkspace("/my/workspace", "")
	require.NoError(t, err)
	c := &Commit{WorkspaceID: ws.ID, SHA: "deadbeef00", Author: "a", Message: "m", Timestamp: "2024-01-01T00:00:00Z", Parents: []string{}}
	require.NoError(t, db.UpsertCommit(c))

	byPath, err := db.Timeline(10, "/my/workspace")
	require.NoError(t, err)
	byID, err := db.Timeline(10, ws.ID)
	require.NoError(t, err)
	require.Equal(t, byPath, byID)
}

func TestCommitDetailsPrefixMatch(t *testing.T) {
	db := openTestDB(t)
	ws, err := db.EnsureWorkspace("/w", "w")
	require.NoError(t, err)
	c := &Commit{WorkspaceID: ws.ID, SHA: "abcdef0123456789", Author: "a", Message: "m", Timestamp: "2024-01-01T00:00:00Z", Parents: []string{}}
	require.NoError(t, db.UpsertCommit(c))

	details, err := db.CommitDetails("abcdef0")
	require.NoError(t, err)
	require.NotNil(t, details)
	require.Equal(t, c.SHA, details.Commit.SHA)
}

func TestCommitDetailsNotFound(t *testing.T) {
	db := openTestDB(t)
	details, err := db.CommitDetails("nonexistent")
	require.NoError(t, err)
	require.Nil(t, details)
}

func TestResolveWorkspaceFilterNoMatchYieldsNoRowsNotError(t *testing.T) {
	db := openTestDB(t)
	id, matched, err := db.ResolveWorkspaceFilter("/does/not/exist")
	require.NoError(t, err)
	require.False(t, matched)
	require.Empty(t, id)
}
