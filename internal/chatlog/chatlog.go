// Package chatlog discovers and parses AI coding-assistant chat-session
// files into sessions and role-tagged messages.
package chatlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/hindsight-dev/hindsight/internal/store"
)

// maxConcurrentFiles bounds the number of session files parsed at once.
const maxConcurrentFiles = 4

// knownVersion is the only chat-session format version this ingestor has
// confirmed semantics for. Other versions are still parsed best-effort.
const knownVersion = 3

// sessionFile mirrors the on-disk VS Code chat session JSON shape.
type sessionFile struct {
	Version           int               `json:"version"`
	SessionID         string            `json:"sessionId"`
	ResponderUsername string            `json:"responderUsername"`
	InitialLocation   string            `json:"initialLocation"`
	Requests          []json.RawMessage `json:"requests"`
}

type sessionRequest struct {
	RequestID    string             `json:"requestId"`
	Message      *sessionMessage    `json:"message"`
	Response     []sessionResponse  `json:"response"`
	VariableData *sessionVariables  `json:"variableData"`
	Timestamp    *int64             `json:"timestamp"`
}

type sessionMessage struct {
	Text string `json:"text"`
}

type sessionResponse struct {
	Value string `json:"value"`
}

type sessionVariables struct {
	Variables []sessionVariable `json:"variables"`
}

type sessionVariable struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// ParsedSession is one file's parsed output, ready for store upsert.
type ParsedSession struct {
	ExternalSessionID string
	Messages          []*store.CopilotMessage
	Warnings          []string
}

// DiscoverSessionFiles returns the sorted list of *.json files directly
// under dir.
func DiscoverSessionFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob chat session directory: %w", err)
	}
	return matches, nil
}

// ParseAll parses every file concurrently (bounded) and returns one
// ParsedSession per path, in the order of paths. A file that cannot be read
// or parsed yields a ParsedSession with an empty ExternalSessionID and a
// single warning rather than aborting the batch, matching the ingestor's
// "skip the offending record, keep going" contract.
func ParseAll(ctx context.Context, paths []string) ([]*ParsedSession, error) {
	results := make([]*ParsedSession, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			parsed, err := ParseFile(path)
			if err != nil {
				// A single unreadable file does not abort the batch; it is
				// reported via an empty ParsedSession with one warning.
				results[i] = &ParsedSession{Warnings: []string{err.Error()}}
				return nil
			}
			results[i] = parsed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParseFile parses one chat session file into a ParsedSession. Structural
// deviations within individual requests are skipped with a warning; the
// session is still returned with whatever messages it yielded.
func ParseFile(path string) (*ParsedSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	sessionID := sf.SessionID
	if sessionID == "" {
		sessionID = filepath.Base(path)
	}

	parsed := &ParsedSession{ExternalSessionID: sessionID}
	if sf.Version != knownVersion {
		parsed.Warnings = append(parsed.Warnings,
			fmt.Sprintf("%s: unrecognized chat session version %d, parsing best-effort", path, sf.Version))
	}

	for i, raw := range sf.Requests {
		var req sessionRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			parsed.Warnings = append(parsed.Warnings,
				fmt.Sprintf("%s: request %d: %v, skipping request", path, i, err))
			continue
		}
		msgs, warn := requestToMessages(req)
		if warn != "" {
			parsed.Warnings = append(parsed.Warnings, fmt.Sprintf("%s: request %d: %s", path, i, warn))
		}
		parsed.Messages = append(parsed.Messages, msgs...)
	}
	return parsed, nil
}

func requestToMessages(req sessionRequest) ([]*store.CopilotMessage, string) {
	if req.Message == nil {
		return nil, "missing message, skipping request"
	}

	var msgs []*store.CopilotMessage
	var requestID *string
	if req.RequestID != "" {
		id := req.RequestID
		requestID = &id
	}

	variablesJSON := filterVariablesJSON(req.VariableData)

	msgs = append(msgs, &store.CopilotMessage{
		RequestID:     requestID,
		Role:          store.RoleUser,
		Content:       req.Message.Text,
		VariablesJSON: variablesJSON,
		Timestamp:     timestampOf(req),
	})

	for _, resp := range req.Response {
		if resp.Value == "" {
			continue
		}
		msgs = append(msgs, &store.CopilotMessage{
			RequestID: requestID,
			Role:      store.RoleAssistant,
			Content:   resp.Value,
			Timestamp: timestampOf(req),
		})
	}
	return msgs, ""
}

func filterVariablesJSON(v *sessionVariables) *string {
	if v == nil || len(v.Variables) == 0 {
		return nil
	}
	b, err := json.Marshal(v.Variables)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func timestampOf(req sessionRequest) string {
	if req.Timestamp != nil {
		return unixMillisToRFC3339(*req.Timestamp)
	}
	return nowRFC3339()
}
