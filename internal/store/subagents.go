package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) CreateSubagent(ctx context.Context, sub kerneldomain.Subagent) (kerneldomain.Subagent, error) {
	now := nowRFC3339()
	autonomy := sub.Autonomy
	if autonomy == "" {
		autonomy = kerneldomain.AutonomyAtomic
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subagents (subagent_id, parent_agent_id, workspace_id, task_id, step_id, worker_type, status, autonomy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.SubagentID, sub.ParentAgentID, sub.WorkspaceID, sub.TaskID, sub.StepID, sub.WorkerType, kerneldomain.SubagentCreated, autonomy, now)
	if err != nil {
		return kerneldomain.Subagent{}, err
	}
	return s.GetSubagent(ctx, sub.SubagentID)
}

func (s *Store) GetSubagent(ctx context.Context, id string) (kerneldomain.Subagent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT subagent_id, parent_agent_id, workspace_id, task_id, step_id, worker_type, status, autonomy, created_at, finished_at
		FROM subagents WHERE subagent_id = ?
	`, id)
	return scanSubagent(row)
}

func scanSubagent(row *sql.Row) (kerneldomain.Subagent, error) {
	var sub kerneldomain.Subagent
	var created string
	var finished sql.NullString
	var status, autonomy string
	if err := row.Scan(&sub.SubagentID, &sub.ParentAgentID, &sub.WorkspaceID, &sub.TaskID, &sub.StepID,
		&sub.WorkerType, &status, &autonomy, &created, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Subagent{}, sql.ErrNoRows
		}
		return kerneldomain.Subagent{}, err
	}
	sub.Status = kerneldomain.SubagentStatus(status)
	sub.Autonomy = kerneldomain.AutonomyLevel(autonomy)
	sub.CreatedAt = parseTimeOrZero(created)
	if finished.Valid {
		t := parseTimeOrZero(finished.String)
		sub.FinishedAt = &t
	}
	return sub, nil
}

// ListSubagentsByTask returns every subagent spawned under a task, in
// creation order.
func (s *Store) ListSubagentsByTask(ctx context.Context, taskID string) ([]kerneldomain.Subagent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subagent_id, parent_agent_id, workspace_id, task_id, step_id, worker_type, status, autonomy, created_at, finished_at
		FROM subagents WHERE task_id = ? ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kerneldomain.Subagent
	for rows.Next() {
		var sub kerneldomain.Subagent
		var created string
		var finished sql.NullString
		var status, autonomy string
		if err := rows.Scan(&sub.SubagentID, &sub.ParentAgentID, &sub.WorkspaceID, &sub.TaskID, &sub.StepID,
			&sub.WorkerType, &status, &autonomy, &created, &finished); err != nil {
			return nil, err
		}
		sub.Status = kerneldomain.SubagentStatus(status)
		sub.Autonomy = kerneldomain.AutonomyLevel(autonomy)
		sub.CreatedAt = parseTimeOrZero(created)
		if finished.Valid {
			t := parseTimeOrZero(finished.String)
			sub.FinishedAt = &t
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpdateSubagentStatus performs an atomic, monotonic transition: the
// UPDATE only takes effect if the row's current status is still the
// expected "from" status, preventing replay from a terminal state even
// under concurrent requests. It returns sql.ErrNoRows if no row
// matched (either missing, or already transitioned).
func (s *Store) UpdateSubagentStatus(ctx context.Context, id string, from, to kerneldomain.SubagentStatus) error {
	var finishedAt any
	if kerneldomain.IsTerminal(to) {
		finishedAt = nowRFC3339()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE subagents SET status = ?, finished_at = COALESCE(finished_at, ?)
		WHERE subagent_id = ? AND status = ?
	`, to, finishedAt, id, from)
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
