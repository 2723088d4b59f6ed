package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) CreateTask(ctx context.Context, t kerneldomain.Task) (kerneldomain.Task, error) {
	now := nowRFC3339()
	contract, err := t.Contract.Encode()
	if err != nil {
		return kerneldomain.Task{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (task_id, workspace_id, created_by_agent_id, title, intent, contract, plan, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TaskID, t.WorkspaceID, t.CreatedByAgent, t.Title, t.Intent, contract, t.Plan, kerneldomain.TaskQueued, now, now)
	if err != nil {
		return kerneldomain.Task{}, err
	}
	return s.GetTask(ctx, t.TaskID)
}

func (s *Store) GetTask(ctx context.Context, id string) (kerneldomain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, workspace_id, created_by_agent_id, title, intent, contract, plan, status, created_at, updated_at
		FROM tasks WHERE task_id = ?
	`, id)
	var t kerneldomain.Task
	var contract, created, updated, status string
	if err := row.Scan(&t.TaskID, &t.WorkspaceID, &t.CreatedByAgent, &t.Title, &t.Intent, &contract, &t.Plan, &status, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Task{}, sql.ErrNoRows
		}
		return kerneldomain.Task{}, err
	}
	t.Status = kerneldomain.TaskStatus(status)
	t.CreatedAt = parseTimeOrZero(created)
	t.UpdatedAt = parseTimeOrZero(updated)
	decoded, err := kerneldomain.DecodeContract(contract)
	if err != nil {
		return kerneldomain.Task{}, err
	}
	t.Contract = decoded
	return t, nil
}

func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status kerneldomain.TaskStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ? WHERE task_id = ?
	`, status, nowRFC3339(), id)
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
