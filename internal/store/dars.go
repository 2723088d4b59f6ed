package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clawos/internal/kerneldomain"
)

func (s *Store) InsertDAR(ctx context.Context, d kerneldomain.DAR) error {
	scope, err := d.Scope.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dct_approval_requests (dar_id, workspace_id, requested_by_agent_id, issue_to_kind, issue_to_id, scope, ttl_seconds, risk_level, status, expires_at, created_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, d.DARID, d.WorkspaceID, d.RequestedByAgent, d.IssueToKind, d.IssueToID, scope, d.TTLSeconds, d.RiskLevel,
		kerneldomain.DARPending, d.ExpiresAt.UTC().Format(time.RFC3339Nano), nowRFC3339())
	return err
}

func (s *Store) GetDAR(ctx context.Context, id string) (kerneldomain.DAR, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT dar_id, workspace_id, requested_by_agent_id, issue_to_kind, issue_to_id, scope, ttl_seconds, risk_level, status, expires_at, created_at, decided_at
		FROM dct_approval_requests WHERE dar_id = ?
	`, id)
	var d kerneldomain.DAR
	var issueToKind, scope, riskLevel, status, expires, created string
	var decidedAt sql.NullString
	if err := row.Scan(&d.DARID, &d.WorkspaceID, &d.RequestedByAgent, &issueToKind, &d.IssueToID, &scope,
		&d.TTLSeconds, &riskLevel, &status, &expires, &created, &decidedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.DAR{}, sql.ErrNoRows
		}
		return kerneldomain.DAR{}, err
	}
	d.IssueToKind = kerneldomain.IssuedToKind(issueToKind)
	d.RiskLevel = kerneldomain.RiskLevel(riskLevel)
	d.Status = kerneldomain.DARStatus(status)
	d.ExpiresAt = parseTimeOrZero(expires)
	d.CreatedAt = parseTimeOrZero(created)
	if decidedAt.Valid {
		t := parseTimeOrZero(decidedAt.String)
		d.DecidedAt = &t
	}
	decodedScope, err := kerneldomain.DecodeScope(scope)
	if err != nil {
		return kerneldomain.DAR{}, err
	}
	d.Scope = decodedScope
	return d, nil
}

// DecideDAR transitions a pending DAR to granted/denied; terminal.
func (s *Store) DecideDAR(ctx context.Context, id string, status kerneldomain.DARStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE dct_approval_requests SET status = ?, decided_at = ?
		WHERE dar_id = ? AND status = ?
	`, status, nowRFC3339(), id, kerneldomain.DARPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
