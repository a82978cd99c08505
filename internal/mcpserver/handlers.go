package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
	"github.com/hindsight-dev/hindsight/internal/store"
)

func marshalPretty(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type timelineInput struct {
	Limit     int    `json:"limit" jsonschema:"Maximum number of events to return,default=20"`
	Workspace string `json:"workspace,omitempty" jsonschema:"Workspace filesystem path or id"`
}

func (s *Server) handleTimeline(ctx context.Context, req *mcp.CallToolRequest, in timelineInput) (*mcp.CallToolResult, any, error) {
	events, err := s.db.Timeline(in.Limit, in.Workspace)
	if err != nil {
		return errorResult("timeline", err), nil, nil
	}
	body, err := marshalPretty(events)
	if err != nil {
		return errorResult("timeline", err), nil, nil
	}
	return textResult(body), nil, nil
}

type searchInput struct {
	Query  string `json:"query" jsonschema:"Full-text search query"`
	Source string `json:"source,omitempty" jsonschema:"One of all,commits,messages,default=all"`
	Limit  int    `json:"limit" jsonschema:"Maximum number of results to return,default=20"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
	source := store.SearchSource(in.Source)
	switch source {
	case "":
		source = store.SearchAll
	case store.SearchAll, store.SearchCommits, store.SearchMessages:
	default:
		return errorResult("search", hinderr.New(hinderr.InvalidInput, "source must be one of all, commits, messages")), nil, nil
	}

	results, err := s.db.Search(in.Query, source, in.Limit)
	if err != nil {
		return errorResult("search", err), nil, nil
	}
	body, err := marshalPretty(results)
	if err != nil {
		return errorResult("search", err), nil, nil
	}
	return textResult(body), nil, nil
}

type failingTestsInput struct {
	Limit     int    `json:"limit" jsonschema:"Maximum number of results to return,default=20"`
	Workspace string `json:"workspace,omitempty" jsonschema:"Workspace filesystem path or id"`
	Commit    string `json:"commit,omitempty" jsonschema:"Commit sha prefix"`
}

func (s *Server) handleFailingTests(ctx context.Context, req *mcp.CallToolRequest, in failingTestsInput) (*mcp.CallToolResult, any, error) {
	results, err := s.db.FailingTests(in.Limit, in.Workspace, in.Commit)
	if err != nil {
		return errorResult("failing_tests", err), nil, nil
	}
	body, err := marshalPretty(results)
	if err != nil {
		return errorResult("failing_tests", err), nil, nil
	}
	return textResult(body), nil, nil
}

type activitySummaryInput struct {
	Days int `json:"days" jsonschema:"Trailing window size in days,default=7"`
}

func (s *Server) handleActivitySummary(ctx context.Context, req *mcp.CallToolRequest, in activitySummaryInput) (*mcp.CallToolResult, any, error) {
	summary, err := s.db.ActivitySummary(in.Days)
	if err != nil {
		return errorResult("activity_summary", err), nil, nil
	}
	body, err := marshalPretty(summary)
	if err != nil {
		return errorResult("activity_summary", err), nil, nil
	}
	return textResult(body), nil, nil
}

type commitDetailsInput struct {
	SHA string `json:"sha" jsonschema:"Commit sha or sha prefix"`
}

func (s *Server) handleCommitDetails(ctx context.Context, req *mcp.CallToolRequest, in commitDetailsInput) (*mcp.CallToolResult, any, error) {
	if in.SHA == "" {
		return errorResult("commit_details", hinderr.New(hinderr.InvalidInput, "sha is required")), nil, nil
	}
	details, err := s.db.CommitDetails(in.SHA)
	if err != nil {
		return errorResult("commit_details", err), nil, nil
	}
	if details == nil {
		return textResult("null"), nil, nil
	}
	body, err := marshalPretty(details)
	if err != nil {
		return errorResult("commit_details", err), nil, nil
	}
	return textResult(body), nil, nil
}
