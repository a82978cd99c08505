package mcpserver

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/hindsight-dev/hindsight/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Server{db: db}
}

func firstText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleTimelineEmptyDB(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleTimeline(context.Background(), nil, timelineInput{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, "[]", firstText(t, result))
}

func TestHandleSearchRejectsEmptyQuery(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleSearch(context.Background(), nil, searchInput{Query: "", Limit: 10})
	require.NoError(t, err)
	require.Contains(t, firstText(t, result), "Error:")
}

func TestHandleSearchRejectsInvalidSource(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleSearch(context.Background(), nil, searchInput{Query: "x", Source: "bogus", Limit: 10})
	require.NoError(t, err)
	require.Contains(t, firstText(t, result), "Error:")
}

func TestHandleCommitDetailsMissingSHA(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleCommitDetails(context.Background(), nil, commitDetailsInput{})
	require.NoError(t, err)
	require.Contains(t, firstText(t, result), "Error:")
}

func TestHandleCommitDetailsNotFoundReturnsNullNotError(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleCommitDetails(context.Background(), nil, commitDetailsInput{SHA: "deadbeef"})
	require.NoError(t, err)
	require.Equal(t, "null", firstText(t, result))
}

func TestHandleActivitySummaryBaseline(t *testing.T) {
	s := newTestServer(t)
	result, _, err := s.handleActivitySummary(context.Background(), nil, activitySummaryInput{Days: 7})
	require.NoError(t, err)
	require.Contains(t, firstText(t, result), `"days": 7`)
}
