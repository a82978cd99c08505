// Package gitlog walks a repository's commit graph and produces the
// per-commit metadata and diff summaries the store ingests.
package gitlog

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
	"github.com/hindsight-dev/hindsight/internal/store"
)

// WalkOptions configures walk_commits.
type WalkOptions struct {
	Limit       int
	FromRef     string
	Since       *time.Time
	Until       *time.Time
	IncludeDiff bool
}

// CommitWithDiff is one commit as extracted by the walker.
type CommitWithDiff struct {
	SHA         string
	Author      string
	AuthorEmail *string
	Message     string
	Timestamp   time.Time
	Parents     []string
	Diff        *store.DiffSummary
}

// IsMerge reports whether the commit has two or more parents.
func (c *CommitWithDiff) IsMerge() bool { return len(c.Parents) >= 2 }

// WalkCommits opens repoPath (walking upward to find the .git container)
// and returns commits reachable from opts.FromRef (default "HEAD"), newest
// first, filtered by opts.Since/opts.Until and capped at opts.Limit.
func WalkCommits(repoPath string, opts WalkOptions) ([]*CommitWithDiff, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, hinderr.Wrap(hinderr.RepositoryNotFound, fmt.Sprintf("open repository at %s", repoPath), err)
	}

	fromRef := opts.FromRef
	if fromRef == "" {
		fromRef = "HEAD"
	}
	startHash, err := resolveRef(repo, fromRef)
	if err != nil {
		return nil, hinderr.Wrap(hinderr.InvalidReference, fmt.Sprintf("resolve ref %q", fromRef), err)
	}

	iter, err := repo.Log(&git.LogOptions{From: startHash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, hinderr.Wrap(hinderr.IO, "open commit log", err)
	}
	defer iter.Close()

	var out []*CommitWithDiff
	err = iter.ForEach(func(c *object.Commit) error {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			return storeIterStop
		}
		ts := c.Committer.When.UTC()
		if opts.Since != nil && ts.Before(*opts.Since) {
			return nil
		}
		if opts.Until != nil && ts.After(*opts.Until) {
			return nil
		}

		cd := &CommitWithDiff{
			SHA:       c.Hash.String(),
			Author:    c.Author.Name,
			Message:   c.Message,
			Timestamp: ts.Truncate(time.Second),
			Parents:   parentHashes(c),
		}
		if c.Author.Email != "" {
			email := c.Author.Email
			cd.AuthorEmail = &email
		}

		if opts.IncludeDiff {
			diff, err := diffAgainstFirstParent(c)
			if err != nil {
				return hinderr.Wrap(hinderr.IO, fmt.Sprintf("diff commit %s", cd.SHA), err)
			}
			cd.Diff = diff
		}

		out = append(out, cd)
		return nil
	})
	if err != nil && err != storeIterStop {
		return nil, hinderr.Wrap(hinderr.IO, "walk commit log", err)
	}
	return out, nil
}

// GetCommit resolves a single ref to its commit metadata and (optionally)
// diff summary.
func GetCommit(repoPath, ref string, includeDiff bool) (*CommitWithDiff, error) {
	commits, err := WalkCommits(repoPath, WalkOptions{Limit: 1, FromRef: ref, IncludeDiff: includeDiff})
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, hinderr.New(hinderr.InvalidReference, fmt.Sprintf("ref %q resolved to no commit", ref))
	}
	return commits[0], nil
}

var storeIterStop = fmt.Errorf("gitlog: stop iteration")

func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	if ref == "HEAD" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.Hash{}, err
		}
		return head.Hash(), nil
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.Hash{}, err
	}
	return *hash, nil
}

func parentHashes(c *object.Commit) []string {
	parents := make([]string, 0, c.NumParents())
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}
	return parents
}

func diffAgainstFirstParent(c *object.Commit) (*store.DiffSummary, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}

	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, err
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, err
	}

	summary := &store.DiffSummary{}
	for _, change := range changes {
		status, path := classifyChange(change)
		summary.Files = append(summary.Files, store.DiffFile{Path: path, Status: status})
	}
	summary.FilesChanged = len(summary.Files)
	sort.Slice(summary.Files, func(i, j int) bool { return summary.Files[i].Path < summary.Files[j].Path })

	patch, err := changes.Patch()
	if err != nil {
		return nil, err
	}
	for _, stat := range patch.Stats() {
		summary.Insertions += stat.Addition
		summary.Deletions += stat.Deletion
	}

	return summary, nil
}

func classifyChange(change *object.Change) (status string, path string) {
	action, err := change.Action()
	if err != nil {
		return "unknown", changePath(change)
	}
	switch action {
	case merkletrie.Insert:
		return "added", change.To.Name
	case merkletrie.Delete:
		return "deleted", change.From.Name
	case merkletrie.Modify:
		if change.From.Name != change.To.Name {
			return "renamed", change.To.Name
		}
		return "modified", change.To.Name
	default:
		return "unknown", changePath(change)
	}
}

func changePath(change *object.Change) string {
	if change.To.Name != "" {
		return change.To.Name
	}
	return change.From.Name
}
