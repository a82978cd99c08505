package gitlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	sig := &object.Signature{Name: "Ada Lovelace", Email: "ada@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	writeAndCommit := func(name, content, message string, when time.Time) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
		s := *sig
		s.When = when
		_, err = wt.Commit(message, &git.CommitOptions{Author: &s, Committer: &s})
		require.NoError(t, err)
	}

	writeAndCommit("a.txt", "hello\n", "root commit", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	writeAndCommit("a.txt", "hello world\n", "update a", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	writeAndCommit("b.txt", "new file\n", "add b", time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))

	return dir
}

func TestWalkCommitsNewestFirst(t *testing.T) {
	dir := initRepo(t)
	commits, err := WalkCommits(dir, WalkOptions{IncludeDiff: true})
	require.NoError(t, err)
	require.Len(t, commits, 3)
	require.Equal(t, "add b", commits[0].Message)
	require.Equal(t, "root commit", commits[2].Message)
	require.False(t, commits[2].IsMerge())
}

func TestWalkCommitsRootCommitDiffsAgainstEmptyTree(t *testing.T) {
	dir := initRepo(t)
	commits, err := WalkCommits(dir, WalkOptions{IncludeDiff: true})
	require.NoError(t, err)
	root := commits[2]
	require.NotNil(t, root.Diff)
	require.Equal(t, 1, root.Diff.FilesChanged)
	require.Equal(t, "added", root.Diff.Files[0].Status)
	require.Equal(t, 0, root.Diff.Files[0].Insertions)
	require.Equal(t, 0, root.Diff.Files[0].Deletions)
	require.Equal(t, 1, root.Diff.Insertions)
	require.Equal(t, 0, root.Diff.Deletions)
}

func TestWalkCommitsDiffAggregateCountsInsertionsAndDeletions(t *testing.T) {
	dir := initRepo(t)
	commits, err := WalkCommits(dir, WalkOptions{IncludeDiff: true})
	require.NoError(t, err)
	update := commits[1]
	require.Equal(t, "update a", update.Message)
	require.NotNil(t, update.Diff)
	require.Equal(t, 1, update.Diff.Insertions)
	require.Equal(t, 1, update.Diff.Deletions)
}

func TestWalkCommitsLimit(t *testing.T) {
	dir := initRepo(t)
	commits, err := WalkCommits(dir, WalkOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, commits, 2)
}

func TestWalkCommitsSinceFilter(t *testing.T) {
	dir := initRepo(t)
	since := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	commits, err := WalkCommits(dir, WalkOptions{Since: &since})
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Equal(t, "add b", commits[0].Message)
}

func TestWalkCommitsRepositoryNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := WalkCommits(dir, WalkOptions{})
	require.Error(t, err)
}

func TestShaMatchesHexPattern(t *testing.T) {
	dir := initRepo(t)
	commits, err := WalkCommits(dir, WalkOptions{})
	require.NoError(t, err)
	for _, c := range commits {
		require.Regexp(t, `^[0-9a-f]{7,40}$`, c.SHA)
	}
}
