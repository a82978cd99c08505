package chatlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hindsight-dev/hindsight/internal/store"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFileExtractsUserAndAssistantMessages(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.json", `{
		"version": 3,
		"sessionId": "sess-1",
		"requests": [
			{
				"requestId": "req-1",
				"message": {"text": "why does this fail?"},
				"response": [{"value": "because of X"}, {"value": "try Y"}],
				"variableData": {"variables": [{"kind": "file", "name": "main.go"}]}
			}
		]
	}`)

	parsed, err := ParseFile(path)
	require.NoError(t, err)
	require.Equal(t, "sess-1", parsed.ExternalSessionID)
	require.Len(t, parsed.Messages, 3)
	require.Equal(t, store.RoleUser, parsed.Messages[0].Role)
	require.Equal(t, "why does this fail?", parsed.Messages[0].Content)
	require.NotNil(t, parsed.Messages[0].VariablesJSON)
	require.Equal(t, store.RoleAssistant, parsed.Messages[1].Role)
	require.Equal(t, store.RoleAssistant, parsed.Messages[2].Role)
	require.Empty(t, parsed.Warnings)
}

func TestParseFileSkipsStructurallyInvalidRequests(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.json", `{
		"version": 3,
		"sessionId": "sess-2",
		"requests": [
			{"requestId": "ok", "message": {"text": "hi"}},
			{"requestId": "bad"}
		]
	}`)

	parsed, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, parsed.Messages, 1)
	require.Len(t, parsed.Warnings, 1)
}

func TestParseFileWarnsOnUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "session.json", `{"version": 7, "sessionId": "sess-3", "requests": []}`)

	parsed, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, parsed.Warnings, 1)
}

func TestParseFileNeverPanicsOnAdversarialJSON(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{`{`, `null`, `[]`, `{"requests": "not an array"}`, `{"requests": [1, 2, 3]}`}
	for i, in := range inputs {
		path := writeFile(t, dir, "x.json", in)
		_, err := ParseFile(path)
		_ = err // malformed top-level JSON returns a typed error, never panics
		_ = i
	}
}

func TestDiscoverAndParseAllParsesEveryFile(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeFile(t, dir, filepaths(i), `{"version":3,"sessionId":"s","requests":[{"requestId":"r","message":{"text":"hi"}}]}`)
	}
	paths, err := DiscoverSessionFiles(dir)
	require.NoError(t, err)
	require.Len(t, paths, 6)

	parsed, err := ParseAll(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, parsed, 6)
	for _, p := range parsed {
		require.NotNil(t, p)
		require.Len(t, p.Messages, 1)
	}
}

func filepaths(i int) string {
	return string(rune('a'+i)) + ".json"
}
