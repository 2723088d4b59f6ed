package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) CreateWorkspace(ctx context.Context, id, typ string) (kerneldomain.Workspace, error) {
	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, type, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, typ, now)
	if err != nil {
		return kerneldomain.Workspace{}, err
	}
	return s.GetWorkspace(ctx, id)
}

func (s *Store) GetWorkspace(ctx context.Context, id string) (kerneldomain.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, type, created_at FROM workspaces WHERE id = ?`, id)
	var w kerneldomain.Workspace
	var created string
	if err := row.Scan(&w.ID, &w.Type, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Workspace{}, sql.ErrNoRows
		}
		return kerneldomain.Workspace{}, err
	}
	w.CreatedAt = parseTimeOrZero(created)
	return w, nil
}
