package mcpserver

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hindsight-dev/hindsight/internal/chatlog"
	"github.com/hindsight-dev/hindsight/internal/config"
	"github.com/hindsight-dev/hindsight/internal/gitlog"
	"github.com/hindsight-dev/hindsight/internal/hinderr"
	"github.com/hindsight-dev/hindsight/internal/nextest"
	"github.com/hindsight-dev/hindsight/internal/store"
)

type ingestInput struct {
	Mode      string `json:"mode" jsonschema:"One of commits,tests,chats"`
	Workspace string `json:"workspace" jsonschema:"Workspace filesystem path"`
	RepoPath  string `json:"repo_path,omitempty" jsonschema:"Repository path, for mode=commits"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum commits to walk, for mode=commits"`
	CommitSHA string `json:"commit_sha,omitempty" jsonschema:"Commit sha to associate with a test run, for mode=tests"`
	Payload   string `json:"payload,omitempty" jsonschema:"Newline-delimited nextest run events or a single list-format JSON object, for mode=tests"`
	ChatDir   string `json:"chat_dir,omitempty" jsonschema:"Chat session directory, for mode=chats"`
}

// handleIngest opens a fresh connection to the same database file rather
// than reusing the server's cached handle, so the lock it holds stays
// short and independent of any other in-flight tool call.
func (s *Server) handleIngest(ctx context.Context, req *mcp.CallToolRequest, in ingestInput) (*mcp.CallToolResult, any, error) {
	db, err := store.OpenPath(s.dbPath)
	if err != nil {
		return errorResult("ingest", err), nil, nil
	}
	defer db.Close()

	ws, err := db.EnsureWorkspace(in.Workspace, "")
	if err != nil {
		return errorResult("ingest", err), nil, nil
	}

	switch in.Mode {
	case "commits":
		return s.ingestCommits(db, ws, in)
	case "tests":
		return s.ingestTests(db, ws, in)
	case "chats":
		return s.ingestChats(ctx, db, ws, in)
	default:
		return errorResult("ingest", hinderr.New(hinderr.InvalidInput, "mode must be one of commits, tests, chats")), nil, nil
	}
}

func (s *Server) ingestCommits(db *store.DB, ws *store.Workspace, in ingestInput) (*mcp.CallToolResult, any, error) {
	repoPath := in.RepoPath
	if repoPath == "" {
		repoPath = ws.Path
	}
	commits, err := gitlog.WalkCommits(repoPath, gitlog.WalkOptions{Limit: in.Limit, IncludeDiff: true})
	if err != nil {
		return errorResult("ingest commits", err), nil, nil
	}

	count := 0
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
			return errorResult("ingest commits", err), nil, nil
		}
		count++
	}

	body, err := marshalPretty(map[string]any{"ingested_commits": count})
	if err != nil {
		return errorResult("ingest commits", err), nil, nil
	}
	return textResult(body), nil, nil
}

func (s *Server) ingestTests(db *store.DB, ws *store.Workspace, in ingestInput) (*mcp.CallToolResult, any, error) {
	payload := in.Payload
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return errorResult("ingest tests", hinderr.New(hinderr.InvalidInput, "payload is required")), nil, nil
	}

	if strings.HasPrefix(trimmed, "{") && !strings.Contains(trimmed, "\n") && isListFormat(trimmed) {
		results, err := nextest.ParseList([]byte(trimmed))
		if err != nil {
			return errorResult("ingest tests", hinderr.Wrap(hinderr.JSONParse, "parse list format", err)), nil, nil
		}
		return s.storeTestResults(db, ws, in.CommitSHA, results)
	}

	var commitSHA *string
	if in.CommitSHA != "" {
		commitSHA = &in.CommitSHA
	}
	parser := nextest.NewParser(commitSHA)
	scanner := bufio.NewScanner(strings.NewReader(payload))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parser.ProcessLine([]byte(line))
	}
	summary := parser.Finish()

	run := &store.TestRun{
		WorkspaceID: ws.ID,
		CommitSHA:   commitSHA,
		StartedAt:   orNow(summary.StartedAt).Format(time.RFC3339),
		PassedCount: summary.Passed,
		FailedCount: summary.Failed,
		IgnoredCount: summary.Ignored,
	}
	if summary.FinishedAt != nil {
		finished := summary.FinishedAt.Format(time.RFC3339)
		run.FinishedAt = &finished
	}
	if err := db.InsertTestRun(run); err != nil {
		return errorResult("ingest tests", err), nil, nil
	}
	for _, r := range summary.Results {
		r.RunID = run.ID
	}
	if err := db.InsertTestResults(summary.Results); err != nil {
		return errorResult("ingest tests", err), nil, nil
	}

	body, err := marshalPretty(map[string]any{
		"run_id":  run.ID,
		"passed":  summary.Passed,
		"failed":  summary.Failed,
		"ignored": summary.Ignored,
		"warnings": parser.Warnings,
	})
	if err != nil {
		return errorResult("ingest tests", err), nil, nil
	}
	return textResult(body), nil, nil
}

func (s *Server) storeTestResults(db *store.DB, ws *store.Workspace, commitSHA string, results []*store.TestResult) (*mcp.CallToolResult, any, error) {
	var sha *string
	if commitSHA != "" {
		sha = &commitSHA
	}
	run := &store.TestRun{WorkspaceID: ws.ID, CommitSHA: sha, StartedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, r := range results {
		switch r.Outcome {
		case store.OutcomePassed:
			run.PassedCount++
		case store.OutcomeIgnored:
			run.IgnoredCount++
		}
	}
	if err := db.InsertTestRun(run); err != nil {
		return errorResult("ingest tests", err), nil, nil
	}
	for _, r := range results {
		r.RunID = run.ID
	}
	if err := db.InsertTestResults(results); err != nil {
		return errorResult("ingest tests", err), nil, nil
	}
	body, err := marshalPretty(map[string]any{"run_id": run.ID, "reserved_results": len(results)})
	if err != nil {
		return errorResult("ingest tests", err), nil, nil
	}
	return textResult(body), nil, nil
}

func isListFormat(payload string) bool {
	return strings.Contains(payload, "\"test-count\"") || strings.Contains(payload, "\"rust-suites\"")
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (s *Server) ingestChats(ctx context.Context, db *store.DB, ws *store.Workspace, in ingestInput) (*mcp.CallToolResult, any, error) {
	dir := in.ChatDir
	if dir == "" {
		def, err := config.ChatSessionsDir(ws.ID)
		if err != nil {
			return errorResult("ingest chats", err), nil, nil
		}
		dir = def
	}

	paths, err := chatlog.DiscoverSessionFiles(dir)
	if err != nil {
		return errorResult("ingest chats", err), nil, nil
	}

	parsed, err := chatlog.ParseAll(ctx, paths)
	if err != nil {
		return errorResult("ingest chats", err), nil, nil
	}

	var warnings []string
	sessions := 0
	messages := 0
	for _, p := range parsed {
		if p == nil {
			continue
		}
		warnings = append(warnings, p.Warnings...)
		if p.ExternalSessionID == "" {
			continue
		}
		sess := &store.CopilotSession{WorkspaceID: ws.ID, ExternalSessionID: p.ExternalSessionID}
		if err := db.UpsertCopilotSession(sess); err != nil {
			return errorResult("ingest chats", err), nil, nil
		}
		for _, m := range p.Messages {
			m.SessionID = sess.ID
		}
		if err := db.InsertCopilotMessages(p.Messages); err != nil {
			return errorResult("ingest chats", err), nil, nil
		}
		sessions++
		messages += len(p.Messages)
	}

	body, err := marshalPretty(map[string]any{
		"ingested_sessions": sessions,
		"ingested_messages": messages,
		"warnings":          warnings,
	})
	if err != nil {
		return errorResult("ingest chats", err), nil, nil
	}
	return textResult(body), nil, nil
}
