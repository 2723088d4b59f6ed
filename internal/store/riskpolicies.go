package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) UpsertRiskPolicy(ctx context.Context, p kerneldomain.RiskPolicy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_policies (action_type, workspace_id, mode, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (action_type, workspace_id) DO UPDATE SET mode = excluded.mode, updated_at = excluded.updated_at
	`, p.ActionType, p.WorkspaceID, p.Mode, nowRFC3339())
	return err
}

// ResolveRiskPolicy looks up the mode for (actionType, workspaceID),
// preferring an exact-workspace row over the wildcard workspace row.
// sql.ErrNoRows means no policy exists at either precedence level.
func (s *Store) ResolveRiskPolicy(ctx context.Context, actionType, workspaceID string) (kerneldomain.RiskPolicy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT action_type, workspace_id, mode, updated_at FROM risk_policies
		WHERE action_type = ? AND workspace_id = ?
	`, actionType, workspaceID)
	p, err := scanRiskPolicy(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return kerneldomain.RiskPolicy{}, err
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT action_type, workspace_id, mode, updated_at FROM risk_policies
		WHERE action_type = ? AND workspace_id = ?
	`, actionType, kerneldomain.WildcardWorkspace)
	return scanRiskPolicy(row)
}

func scanRiskPolicy(row *sql.Row) (kerneldomain.RiskPolicy, error) {
	var p kerneldomain.RiskPolicy
	var mode, updated string
	if err := row.Scan(&p.ActionType, &p.WorkspaceID, &mode, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.RiskPolicy{}, sql.ErrNoRows
		}
		return kerneldomain.RiskPolicy{}, err
	}
	p.Mode = kerneldomain.PolicyMode(mode)
	p.UpdatedAt = parseTimeOrZero(updated)
	return p, nil
}

func (s *Store) ListRiskPolicies(ctx context.Context) ([]kerneldomain.RiskPolicy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action_type, workspace_id, mode, updated_at FROM risk_policies`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kerneldomain.RiskPolicy
	for rows.Next() {
		var p kerneldomain.RiskPolicy
		var mode, updated string
		if err := rows.Scan(&p.ActionType, &p.WorkspaceID, &mode, &updated); err != nil {
			return nil, err
		}
		p.Mode = kerneldomain.PolicyMode(mode)
		p.UpdatedAt = parseTimeOrZero(updated)
		out = append(out, p)
	}
	return out, rows.Err()
}
