package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

// InsertActionRequestPending atomically inserts a new pending action
// request. Returns ErrExists if a row with this RequestID is already
// present — the caller compares payloads for the idempotency check
// rather than relying on this insert to do it.
var ErrExists = errors.New("action request already exists")

func (s *Store) InsertActionRequestPending(ctx context.Context, ar kerneldomain.ActionRequest) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO action_requests (request_id, workspace_id, agent_id, action_type, destination, payload, status, approval_required, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', ?)
		ON CONFLICT(request_id) DO NOTHING
	`, ar.RequestID, ar.WorkspaceID, ar.AgentID, ar.ActionType, ar.Destination, ar.Payload, kerneldomain.ActionPending, nowRFC3339())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *Store) GetActionRequest(ctx context.Context, requestID string) (kerneldomain.ActionRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT request_id, workspace_id, agent_id, action_type, destination, payload, status, approval_required, result, created_at
		FROM action_requests WHERE request_id = ?
	`, requestID)
	var ar kerneldomain.ActionRequest
	var created, status string
	var approvalRequired int
	if err := row.Scan(&ar.RequestID, &ar.WorkspaceID, &ar.AgentID, &ar.ActionType, &ar.Destination, &ar.Payload,
		&status, &approvalRequired, &ar.Result, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.ActionRequest{}, sql.ErrNoRows
		}
		return kerneldomain.ActionRequest{}, err
	}
	ar.Status = kerneldomain.ActionRequestStatus(status)
	ar.ApprovalRequired = approvalRequired != 0
	ar.CreatedAt = parseTimeOrZero(created)
	return ar, nil
}

// SamePayload reports whether candidate equals the stored payload
// byte-for-byte, the idempotency comparison required by spec.md §3/§8 P1.
func SamePayload(stored, candidate []byte) bool {
	return bytes.Equal(stored, candidate)
}

func (s *Store) UpdateActionRequestStatus(ctx context.Context, requestID string, status kerneldomain.ActionRequestStatus, approvalRequired bool, result string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE action_requests SET status = ?, approval_required = ?, result = ? WHERE request_id = ?
	`, status, boolToInt(approvalRequired), result, requestID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
