package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) UpsertAgent(ctx context.Context, workspaceID, agentID, role string) (kerneldomain.Agent, error) {
	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (agent_id, workspace_id, role, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET role=excluded.role
	`, agentID, workspaceID, role, now)
	if err != nil {
		return kerneldomain.Agent{}, err
	}
	return s.GetAgent(ctx, agentID)
}

func (s *Store) GetAgent(ctx context.Context, agentID string) (kerneldomain.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT agent_id, workspace_id, role, created_at FROM agents WHERE agent_id = ?
	`, agentID)
	var a kerneldomain.Agent
	var created string
	if err := row.Scan(&a.AgentID, &a.WorkspaceID, &a.Role, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Agent{}, sql.ErrNoRows
		}
		return kerneldomain.Agent{}, err
	}
	a.CreatedAt = parseTimeOrZero(created)
	return a, nil
}
