// Package mcpserver maps named MCP tool requests to the query layer and
// ingestors, and serializes their results back onto the stdio transport.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hindsight-dev/hindsight/internal/store"
)

// Server holds the dependencies every tool handler needs.
type Server struct {
	db     *store.DB
	dbPath string
	log    *slog.Logger
}

// New builds a Server around an already-open store handle. dbPath is
// retained so the ingest tool can open its own short-lived connection to
// the same file, per the "ingest does not share the cached handle" rule.
func New(db *store.DB, dbPath string, log *slog.Logger) *Server {
	return &Server{db: db, dbPath: dbPath, log: log}
}

// Serve builds the MCP server, registers all tools, and runs the stdio
// transport until the context is cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{Name: "hindsight", Version: "0.1.0"}, nil)
	s.registerTools(server)
	return server.Run(ctx, &mcp.StdioTransport{})
}

func readOnly() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true}
}

func writeNonDestructive() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{ReadOnlyHint: false, DestructiveHint: false, IdempotentHint: false}
}

func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "timeline",
		Description: "List recent workspace events (commits, test runs, chat messages) newest first.",
		Annotations: readOnly(),
	}, s.handleTimeline)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search",
		Description: "Full-text search over commit messages and chat messages.",
		Annotations: readOnly(),
	}, s.handleSearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "failing_tests",
		Description: "List recent failing or timed-out test results.",
		Annotations: readOnly(),
	}, s.handleFailingTests)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "activity_summary",
		Description: "Summarize commit, test-run, session, and failing-test counts over a trailing window.",
		Annotations: readOnly(),
	}, s.handleActivitySummary)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "commit_details",
		Description: "Look up a commit by sha prefix, with its changed files and associated test runs.",
		Annotations: readOnly(),
	}, s.handleCommitDetails)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest",
		Description: "Ingest commits, test results, or chat sessions into the store.",
		Annotations: writeNonDestructive(),
	}, s.handleIngest)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(prefix string, err error) *mcp.CallToolResult {
	return textResult("Error: " + prefix + ": " + err.Error())
}
