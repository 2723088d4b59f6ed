// Package store is the Kernel's durable state: workspaces, agents,
// subagents, tasks, tokens, approvals, artifacts, events, sessions,
// objectives, connections, and kernel state. It is a single embedded
// SQLite database opened in WAL mode behind a single open connection,
// following apps/ReleaseParty/backend/internal/store/store.go: reads
// and writes are serialized through that connection, no external
// database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS kernel_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS agents (
			agent_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS subagents (
			subagent_id TEXT PRIMARY KEY,
			parent_agent_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			step_id TEXT NOT NULL DEFAULT '',
			worker_type TEXT NOT NULL,
			status TEXT NOT NULL,
			autonomy TEXT NOT NULL DEFAULT 'atomic',
			created_at TEXT NOT NULL,
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			created_by_agent_id TEXT NOT NULL,
			title TEXT NOT NULL,
			intent TEXT NOT NULL,
			contract TEXT NOT NULL,
			plan TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS dcts (
			token_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			issued_to_kind TEXT NOT NULL,
			issued_to_id TEXT NOT NULL,
			parent_agent_id TEXT NOT NULL DEFAULT '',
			task_id TEXT NOT NULL DEFAULT '',
			scope TEXT NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			expires_at TEXT NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS action_requests (
			request_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			destination TEXT NOT NULL DEFAULT '',
			payload BLOB NOT NULL,
			status TEXT NOT NULL,
			approval_required INTEGER NOT NULL DEFAULT 0,
			result TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			action_request_id TEXT NOT NULL,
			requested_by TEXT NOT NULL,
			status TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			decision_reason TEXT NOT NULL DEFAULT '',
			decided_at TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS dct_approval_requests (
			dar_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			requested_by_agent_id TEXT NOT NULL,
			issue_to_kind TEXT NOT NULL,
			issue_to_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			risk_level TEXT NOT NULL,
			status TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			decided_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			artifact_id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			actor_kind TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			uri TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			task_id TEXT NOT NULL DEFAULT '',
			actor_kind TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			type TEXT NOT NULL,
			ts TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id, ts);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			remote_jid TEXT NOT NULL,
			status TEXT NOT NULL,
			turn_count INTEGER NOT NULL DEFAULT 0,
			context_summary TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_message_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_lookup ON sessions(workspace_id, channel, remote_jid, last_message_at);`,
		`CREATE TABLE IF NOT EXISTS objectives (
			objective_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			goal TEXT NOT NULL,
			required_deliverable TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS objective_tool_evidence (
			evidence_id TEXT PRIMARY KEY,
			objective_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS objective_turns (
			turn_id TEXT PRIMARY KEY,
			objective_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS risk_policies (
			action_type TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (action_type, workspace_id)
		);`,
		`CREATE TABLE IF NOT EXISTS connections (
			provider TEXT PRIMARY KEY,
			encrypted_secret TEXT NOT NULL,
			status TEXT NOT NULL,
			last_tested_at TEXT,
			last_error TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

func parseTimeOrZero(raw string) time.Time {
	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
