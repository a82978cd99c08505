package store

// migration is one step in the numbered ledger: up applies the step and
// down reverts it (used by RollbackTo). Each is applied inside a single
// transaction.
type migration struct {
	version int
	name    string
	up      string
	down    string
}

// migrations is the ordered ledger. Append-only: never edit an already
// released entry, add a new one instead.
var migrations = []migration{
	{
		version: 1,
		name:    "base schema",
		up: `
CREATE TABLE workspaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE commits (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	sha TEXT NOT NULL,
	author TEXT NOT NULL,
	author_email TEXT,
	message TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	parents_json TEXT NOT NULL,
	diff_json TEXT,
	created_at TEXT NOT NULL,
	UNIQUE (workspace_id, sha)
);
CREATE INDEX idx_commits_workspace_id ON commits(workspace_id);
CREATE INDEX idx_commits_timestamp ON commits(timestamp);
CREATE INDEX idx_commits_sha ON commits(sha);

CREATE TABLE test_runs (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	commit_sha TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	passed_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	ignored_count INTEGER NOT NULL DEFAULT 0,
	metadata_json TEXT
);
CREATE INDEX idx_test_runs_workspace_id ON test_runs(workspace_id);
CREATE INDEX idx_test_runs_started_at ON test_runs(started_at);

CREATE TABLE test_results (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES test_runs(id),
	suite_name TEXT NOT NULL,
	test_name TEXT NOT NULL,
	outcome TEXT NOT NULL,
	duration_ms INTEGER,
	output_json TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX idx_test_results_run_id ON test_results(run_id);
CREATE INDEX idx_test_results_outcome ON test_results(outcome);

CREATE TABLE copilot_sessions (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	external_session_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	metadata_json TEXT,
	UNIQUE (workspace_id, external_session_id)
);
CREATE INDEX idx_copilot_sessions_workspace_id ON copilot_sessions(workspace_id);

CREATE TABLE copilot_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES copilot_sessions(id),
	request_id TEXT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	variables_json TEXT,
	timestamp TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX idx_copilot_messages_session_id ON copilot_messages(session_id);
CREATE INDEX idx_copilot_messages_timestamp ON copilot_messages(timestamp);
`,
		down: `
DROP TABLE IF EXISTS copilot_messages;
DROP TABLE IF EXISTS copilot_sessions;
DROP TABLE IF EXISTS test_results;
DROP TABLE IF EXISTS test_runs;
DROP TABLE IF EXISTS commits;
DROP TABLE IF EXISTS workspaces;
`,
	},
	{
		version: 2,
		name:    "fts5 indexes and sync triggers",
		up: `
CREATE VIRTUAL TABLE commits_fts USING fts5(message, content='commits', content_rowid='rowid');
CREATE VIRTUAL TABLE copilot_messages_fts USING fts5(content, content='copilot_messages', content_rowid='rowid');

CREATE TRIGGER commits_fts_ai AFTER INSERT ON commits BEGIN
	INSERT INTO commits_fts(rowid, message) VALUES (new.rowid, new.message);
END;
CREATE TRIGGER commits_fts_ad AFTER DELETE ON commits BEGIN
	INSERT INTO commits_fts(commits_fts, rowid, message) VALUES ('delete', old.rowid, old.message);
END;
CREATE TRIGGER commits_fts_au AFTER UPDATE ON commits BEGIN
	INSERT INTO commits_fts(commits_fts, rowid, message) VALUES ('delete', old.rowid, old.message);
	INSERT INTO commits_fts(rowid, message) VALUES (new.rowid, new.message);
END;

CREATE TRIGGER copilot_messages_fts_ai AFTER INSERT ON copilot_messages BEGIN
	INSERT INTO copilot_messages_fts(rowid, content) VALUES (new.rowid, new.content);
END;
CREATE TRIGGER copilot_messages_fts_ad AFTER DELETE ON copilot_messages BEGIN
	INSERT INTO copilot_messages_fts(copilot_messages_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
END;
CREATE TRIGGER copilot_messages_fts_au AFTER UPDATE ON copilot_messages BEGIN
	INSERT INTO copilot_messages_fts(copilot_messages_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	INSERT INTO copilot_messages_fts(rowid, content) VALUES (new.rowid, new.content);
END;
`,
		down: `
DROP TRIGGER IF EXISTS copilot_messages_fts_au;
DROP TRIGGER IF EXISTS copilot_messages_fts_ad;
DROP TRIGGER IF EXISTS copilot_messages_fts_ai;
DROP TRIGGER IF EXISTS commits_fts_au;
DROP TRIGGER IF EXISTS commits_fts_ad;
DROP TRIGGER IF EXISTS commits_fts_ai;
DROP TABLE IF EXISTS copilot_messages_fts;
DROP TABLE IF EXISTS commits_fts;
`,
	},
	{
		version: 3,
		name:    "derived views",
		up: `
CREATE VIEW timeline AS
	SELECT 'commit' AS event_type,
	       c.id AS event_id,
	       c.workspace_id AS workspace_id,
	       c.timestamp AS event_timestamp,
	       substr(c.message, 1, instr(c.message || char(10), char(10)) - 1) AS summary,
	       c.diff_json AS details_json
	FROM commits c
	UNION ALL
	SELECT 'test_run' AS event_type,
	       t.id AS event_id,
	       t.workspace_id AS workspace_id,
	       COALESCE(t.finished_at, t.started_at) AS event_timestamp,
	       'passed=' || t.passed_count || ' failed=' || t.failed_count || ' ignored=' || t.ignored_count AS summary,
	       t.metadata_json AS details_json
	FROM test_runs t
	UNION ALL
	SELECT 'copilot_message' AS event_type,
	       m.id AS event_id,
	       s.workspace_id AS workspace_id,
	       m.timestamp AS event_timestamp,
	       substr(m.content, 1, 120) AS summary,
	       m.variables_json AS details_json
	FROM copilot_messages m
	JOIN copilot_sessions s ON s.id = m.session_id;

CREATE VIEW failing_tests AS
	SELECT r.test_name AS test_name,
	       r.suite_name AS suite_name,
	       r.test_name AS full_name,
	       r.duration_ms AS duration_ms,
	       r.output_json AS output_json,
	       r.run_id AS run_id,
	       t.commit_sha AS commit_sha,
	       t.started_at AS started_at
	FROM test_results r
	JOIN test_runs t ON t.id = r.run_id
	WHERE r.outcome IN ('failed', 'timedout');

CREATE VIEW recent_activity AS
	SELECT workspace_id, date(timestamp) AS day, COUNT(*) AS event_count
	FROM (
		SELECT workspace_id, timestamp FROM commits
		UNION ALL
		SELECT s.workspace_id AS workspace_id, m.timestamp AS timestamp
		FROM copilot_messages m JOIN copilot_sessions s ON s.id = m.session_id
	)
	GROUP BY workspace_id, day;
`,
		down: `
DROP VIEW IF EXISTS recent_activity;
DROP VIEW IF EXISTS failing_tests;
DROP VIEW IF EXISTS timeline;
`,
	},
}
