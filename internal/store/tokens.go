package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clawos/internal/kerneldomain"
)

func (s *Store) InsertDCT(ctx context.Context, t kerneldomain.DCT) error {
	scope, err := t.Scope.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dcts (token_id, workspace_id, issued_to_kind, issued_to_id, parent_agent_id, task_id, scope, ttl_seconds, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, t.TokenID, t.WorkspaceID, t.IssuedToKind, t.IssuedToID, t.ParentAgentID, t.TaskID, scope, t.TTLSeconds,
		t.ExpiresAt.UTC().Format(time.RFC3339Nano), nowRFC3339())
	return err
}

func (s *Store) GetDCT(ctx context.Context, tokenID string) (kerneldomain.DCT, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token_id, workspace_id, issued_to_kind, issued_to_id, parent_agent_id, task_id, scope, ttl_seconds, expires_at, revoked, created_at
		FROM dcts WHERE token_id = ?
	`, tokenID)
	var t kerneldomain.DCT
	var scope, expires, created, issuedToKind string
	var revoked int
	if err := row.Scan(&t.TokenID, &t.WorkspaceID, &issuedToKind, &t.IssuedToID, &t.ParentAgentID, &t.TaskID,
		&scope, &t.TTLSeconds, &expires, &revoked, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.DCT{}, sql.ErrNoRows
		}
		return kerneldomain.DCT{}, err
	}
	t.IssuedToKind = kerneldomain.IssuedToKind(issuedToKind)
	t.Revoked = revoked != 0
	t.CreatedAt = parseTimeOrZero(created)
	t.ExpiresAt = parseTimeOrZero(expires)
	decoded, err := kerneldomain.DecodeScope(scope)
	if err != nil {
		return kerneldomain.DCT{}, err
	}
	t.Scope = decoded
	return t, nil
}

func (s *Store) RevokeDCT(ctx context.Context, tokenID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE dcts SET revoked = 1 WHERE token_id = ?`, tokenID)
	return err
}

// DeleteExpiredDCTs purges tokens past expiry; called at startup per
// spec.md §5 ("at boot, delete all expired tokens").
func (s *Store) DeleteExpiredDCTs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dcts WHERE expires_at <= ?`, nowRFC3339())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
