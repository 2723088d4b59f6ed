package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) InsertSession(ctx context.Context, sess kerneldomain.Session) (kerneldomain.Session, error) {
	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, workspace_id, channel, remote_jid, status, turn_count, context_summary, created_at, last_message_at)
		VALUES (?, ?, ?, ?, ?, 0, '', ?, ?)
	`, sess.SessionID, sess.WorkspaceID, sess.Channel, sess.RemoteJID, kerneldomain.SessionActive, now, now)
	if err != nil {
		return kerneldomain.Session{}, err
	}
	return s.GetSession(ctx, sess.SessionID)
}

func (s *Store) GetSession(ctx context.Context, id string) (kerneldomain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, workspace_id, channel, remote_jid, status, turn_count, context_summary, created_at, last_message_at
		FROM sessions WHERE session_id = ?
	`, id)
	return scanSession(row)
}

func scanSession(row *sql.Row) (kerneldomain.Session, error) {
	var sess kerneldomain.Session
	var status, created, lastMsg string
	if err := row.Scan(&sess.SessionID, &sess.WorkspaceID, &sess.Channel, &sess.RemoteJID, &status,
		&sess.TurnCount, &sess.ContextSummary, &created, &lastMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Session{}, sql.ErrNoRows
		}
		return kerneldomain.Session{}, err
	}
	sess.Status = kerneldomain.SessionStatus(status)
	sess.CreatedAt = parseTimeOrZero(created)
	sess.LastMessageAt = parseTimeOrZero(lastMsg)
	return sess, nil
}

// GetLatestSession returns the most recently created session row for a
// (workspace, channel, remote_jid) tuple, regardless of status.
// sql.ErrNoRows if none exists yet.
func (s *Store) GetLatestSession(ctx context.Context, workspaceID, channel, remoteJID string) (kerneldomain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, workspace_id, channel, remote_jid, status, turn_count, context_summary, created_at, last_message_at
		FROM sessions WHERE workspace_id = ? AND channel = ? AND remote_jid = ?
		ORDER BY created_at DESC LIMIT 1
	`, workspaceID, channel, remoteJID)
	return scanSession(row)
}

func (s *Store) CloseSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ? WHERE session_id = ?`, kerneldomain.SessionClosed, id)
	return err
}

// AdvanceSession increments turn_count, refreshes last_message_at, and
// stores a (possibly truncated) context summary after an assistant turn.
func (s *Store) AdvanceSession(ctx context.Context, id, summary string) (kerneldomain.Session, error) {
	if len(summary) > kerneldomain.ContextSummaryMaxChars {
		summary = summary[:kerneldomain.ContextSummaryMaxChars]
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET turn_count = turn_count + 1, context_summary = ?, last_message_at = ?
		WHERE session_id = ?
	`, summary, nowRFC3339(), id)
	if err != nil {
		return kerneldomain.Session{}, err
	}
	return s.GetSession(ctx, id)
}
