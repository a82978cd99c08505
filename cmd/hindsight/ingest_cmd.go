package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hindsight-dev/hindsight/internal/chatlog"
	"github.com/hindsight-dev/hindsight/internal/config"
	"github.com/hindsight-dev/hindsight/internal/gitlog"
	"github.com/hindsight-dev/hindsight/internal/nextest"
	"github.com/hindsight-dev/hindsight/internal/store"
)

func ingestCmd() *cobra.Command {
	var (
		tests     bool
		commits   bool
		chats     bool
		commitSHA string
		repoPath  string
		chatDir   string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest test results, commits, or chat sessions into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}
			db, err := store.OpenPathWithOptions(cfg.DatabasePath, store.OpenPathOptions{SkipInit: cfg.SkipInit})
			if err != nil {
				return err
			}
			defer db.Close()

			ws, err := db.EnsureWorkspace(cfg.WorkspacePath, "")
			if err != nil {
				return err
			}

			switch {
			case tests:
				return runIngestTests(cmd, db, ws, commitSHA, asJSON)
			case commits:
				if repoPath == "" {
					repoPath = cfg.WorkspacePath
				}
				return runIngestCommits(cmd, db, ws, repoPath, limit, asJSON)
			case chats:
				return runIngestChats(cmd, db, ws, chatDir, asJSON)
			default:
				return fmt.Errorf("one of --tests, --commits, or --chats is required")
			}
		},
	}

	cmd.Flags().BoolVar(&tests, "tests", false, "ingest nextest output from stdin")
	cmd.Flags().StringVar(&commitSHA, "commit", "", "commit sha to associate with the ingested test run")
	cmd.Flags().BoolVar(&commits, "commits", false, "ingest commits from a repository")
	cmd.Flags().StringVar(&repoPath, "repo", "", "repository path, for --commits")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of commits to walk, for --commits")
	cmd.Flags().BoolVar(&chats, "chats", false, "ingest chat session files")
	cmd.Flags().StringVar(&chatDir, "dir", "", "chat session directory, for --chats")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print machine-readable JSON instead of a human summary")

	return cmd
}

func runIngestTests(cmd *cobra.Command, db *store.DB, ws *store.Workspace, commitSHA string, asJSON bool) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return fmt.Errorf("no input on stdin")
	}

	var sha *string
	if commitSHA != "" {
		sha = &commitSHA
	}

	if strings.HasPrefix(trimmed, "{") && !strings.Contains(trimmed, "\n") &&
		(strings.Contains(trimmed, "\"test-count\"") || strings.Contains(trimmed, "\"rust-suites\"")) {
		results, err := nextest.ParseList([]byte(trimmed))
		if err != nil {
			return fmt.Errorf("parse list format: %w", err)
		}
		run := &store.TestRun{WorkspaceID: ws.ID, CommitSHA: sha, StartedAt: time.Now().UTC().Format(time.RFC3339)}
		if err := db.InsertTestRun(run); err != nil {
			return err
		}
		for _, r := range results {
			r.RunID = run.ID
		}
		if err := db.InsertTestResults(results); err != nil {
			return err
		}
		return printIngestSummary(cmd, asJSON, map[string]any{"run_id": run.ID, "reserved_results": len(results)})
	}

	parser := nextest.NewParser(sha)
	scanner := bufio.NewScanner(strings.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			parser.ProcessLine([]byte(line))
		}
	}
	summary := parser.Finish()

	run := &store.TestRun{
		WorkspaceID:  ws.ID,
		CommitSHA:    sha,
		StartedAt:    orNow(summary.StartedAt).Format(time.RFC3339),
		PassedCount:  summary.Passed,
		FailedCount:  summary.Failed,
		IgnoredCount: summary.Ignored,
	}
	if summary.FinishedAt != nil {
		finished := summary.FinishedAt.Format(time.RFC3339)
		run.FinishedAt = &finished
	}
	if err := db.InsertTestRun(run); err != nil {
		return err
	}
	for _, r := range summary.Results {
		r.RunID = run.ID
	}
	if err := db.InsertTestResults(summary.Results); err != nil {
		return err
	}
	return printIngestSummary(cmd, asJSON, map[string]any{
		"run_id": run.ID, "passed": summary.Passed, "failed": summary.Failed,
		"ignored": summary.Ignored, "warnings": parser.Warnings,
	})
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func runIngestCommits(cmd *cobra.Command, db *store.DB, ws *store.Workspace, repoPath string, limit int, asJSON bool) error {
	commits, err := gitlog.WalkCommits(repoPath, gitlog.WalkOptions{Limit: limit, IncludeDiff: true})
	if err != nil {
		return err
	}
	for _, c := range commits {
		rec := &store.Commit{
			WorkspaceID: ws.ID,
			SHA:         c.SHA,
			Author:      c.Author,
			AuthorEmail: c.AuthorEmail,
			Message:     c.Message,
			Timestamp:   c.Timestamp.Format(time.RFC3339),
			Parents:     c.Parents,
			Diff:        c.Diff,
		}
		if err := db.UpsertCommit(rec); err != nil {
			return err
		}
	}
	return printIngestSummary(cmd, asJSON, map[string]any{"ingested_commits": len(commits)})
}

func runIngestChats(cmd *cobra.Command, db *store.DB, ws *store.Workspace, chatDir string, asJSON bool) error {
	dir := chatDir
	if dir == "" {
		def, err := config.ChatSessionsDir(ws.ID)
		if err != nil {
			return err
		}
		dir = def
	}
	paths, err := chatlog.DiscoverSessionFiles(dir)
	if err != nil {
		return err
	}
	parsed, err := chatlog.ParseAll(context.Background(), paths)
	if err != nil {
		return err
	}

	sessions, messages := 0, 0
	var warnings []string
	for _, p := range parsed {
		if p == nil || p.ExternalSessionID == "" {
			continue
		}
		warnings = append(warnings, p.Warnings...)
		sess := &store.CopilotSession{WorkspaceID: ws.ID, ExternalSessionID: p.ExternalSessionID}
		if err := db.UpsertCopilotSession(sess); err != nil {
			return err
		}
		for _, m := range p.Messages {
			m.SessionID = sess.ID
		}
		if err := db.InsertCopilotMessages(p.Messages); err != nil {
			return err
		}
		sessions++
		messages += len(p.Messages)
	}
	return printIngestSummary(cmd, asJSON, map[string]any{
		"ingested_sessions": sessions, "ingested_messages": messages, "warnings": warnings,
	})
}

func printIngestSummary(cmd *cobra.Command, asJSON bool, summary map[string]any) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	green := color.New(color.FgGreen).SprintFunc()
	for k, v := range summary {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %v\n", green(k+":"), v)
	}
	return nil
}
