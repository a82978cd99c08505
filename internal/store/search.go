package store

import (
	"sort"

	"github.com/hindsight-dev/hindsight/internal/hinderr"
)

// SearchSource restricts a Search call to one FTS index, or both.
type SearchSource string

const (
	SearchAll      SearchSource = "all"
	SearchCommits  SearchSource = "commits"
	SearchMessages SearchSource = "messages"
)

// SearchResult is one FTS5 match, ranked by bm25 (lower is more relevant).
type SearchResult struct {
	ResultType string  `json:"result_type"`
	ID         string  `json:"id"`
	Snippet    string  `json:"snippet"`
	Rank       float64 `json:"rank"`
	Timestamp  string  `json:"timestamp"`
}

// snippetTokenBudget bounds the highlighted excerpt returned per match.
const snippetTokenBudget = 32

// Search runs an FTS5 MATCH query against the selected index or indexes.
// source=all queries both and merges by ascending rank, truncated to limit.
func (db *DB) Search(query string, source SearchSource, limit int) ([]SearchResult, error) {
	if query == "" {
		return nil, hinderr.New(hinderr.InvalidInput, "search query must not be empty")
	}
	if limit <= 0 {
		limit = 20
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	var results []SearchResult

	if source == SearchAll || source == SearchCommits {
		rows, err := db.conn.Query(`
			SELECT c.id, snippet(commits_fts, 0, '<mark>', '</mark>', '...', ?) AS snippet,
			       commits_fts.rank AS rank, c.timestamp
			FROM commits_fts
			JOIN commits c ON c.rowid = commits_fts.rowid
			WHERE commits_fts MATCH ?
			ORDER BY rank
			LIMIT ?`,
			snippetTokenBudget, query, limit,
		)
		if err != nil {
			return nil, hinderr.Wrap(hinderr.DB, "search commits", err)
		}
		err = collectSearchRows(rows, "commit", &results)
		if err != nil {
			return nil, err
		}
	}

	if source == SearchAll || source == SearchMessages {
		rows, err := db.conn.Query(`
			SELECT m.id, snippet(copilot_messages_fts, 0, '<mark>', '</mark>', '...', ?) AS snippet,
			       copilot_messages_fts.rank AS rank, m.timestamp
			FROM copilot_messages_fts
			JOIN copilot_messages m ON m.rowid = copilot_messages_fts.rowid
			WHERE copilot_messages_fts MATCH ?
			ORDER BY rank
			LIMIT ?`,
			snippetTokenBudget, query, limit,
		)
		if err != nil {
			return nil, hinderr.Wrap(hinderr.DB, "search copilot messages", err)
		}
		err = collectSearchRows(rows, "copilot_message", &results)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func collectSearchRows(rows interface {
	Next() bool
	Scan(...any) error
	Close() error
	Err() error
}, resultType string, out *[]SearchResult) error {
	defer rows.Close()
	for rows.Next() {
		var r SearchResult
		r.ResultType = resultType
		if err := rows.Scan(&r.ID, &r.Snippet, &r.Rank, &r.Timestamp); err != nil {
			return hinderr.Wrap(hinderr.DB, "scan search result", err)
		}
		*out = append(*out, r)
	}
	return rows.Err()
}
