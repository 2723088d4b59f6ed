package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clawos/internal/kerneldomain"
)

func (s *Store) InsertApproval(ctx context.Context, a kerneldomain.Approval) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (approval_id, workspace_id, action_request_id, requested_by, status, expires_at, decision_reason, decided_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, '', NULL, ?)
	`, a.ApprovalID, a.WorkspaceID, a.ActionRequestID, a.RequestedBy, kerneldomain.ApprovalPending,
		a.ExpiresAt.UTC().Format(time.RFC3339Nano), nowRFC3339())
	return err
}

func (s *Store) GetApproval(ctx context.Context, id string) (kerneldomain.Approval, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT approval_id, workspace_id, action_request_id, requested_by, status, expires_at, decision_reason, decided_at, created_at
		FROM approvals WHERE approval_id = ?
	`, id)
	var a kerneldomain.Approval
	var status, expires, created string
	var decidedAt sql.NullString
	if err := row.Scan(&a.ApprovalID, &a.WorkspaceID, &a.ActionRequestID, &a.RequestedBy, &status, &expires,
		&a.DecisionReason, &decidedAt, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Approval{}, sql.ErrNoRows
		}
		return kerneldomain.Approval{}, err
	}
	a.Status = kerneldomain.ApprovalStatus(status)
	a.ExpiresAt = parseTimeOrZero(expires)
	a.CreatedAt = parseTimeOrZero(created)
	if decidedAt.Valid {
		t := parseTimeOrZero(decidedAt.String)
		a.DecidedAt = &t
	}
	return a, nil
}

// DecideApproval transitions a pending approval to approved/rejected.
// The transition only applies if the row is still pending, making
// decisions terminal even under a racing second decide call.
func (s *Store) DecideApproval(ctx context.Context, id string, status kerneldomain.ApprovalStatus, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE approvals SET status = ?, decision_reason = ?, decided_at = ?
		WHERE approval_id = ? AND status = ?
	`, status, reason, nowRFC3339(), id, kerneldomain.ApprovalPending)
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
