package store

import (
	"context"

	"clawos/internal/kerneldomain"
)

func (s *Store) InsertEvent(ctx context.Context, e kerneldomain.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, workspace_id, task_id, actor_kind, actor_id, type, ts, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.EventID, e.WorkspaceID, e.TaskID, e.ActorKind, e.ActorID, e.Type, nowRFC3339(), e.Data)
	return err
}

// ListEventsByTask returns the finite, ascending event stream for one
// task, per spec.md §6.1's GET /kernel/tasks/:id/events.
func (s *Store) ListEventsByTask(ctx context.Context, taskID string) ([]kerneldomain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, workspace_id, task_id, actor_kind, actor_id, type, ts, data
		FROM events WHERE task_id = ? ORDER BY ts ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kerneldomain.Event
	for rows.Next() {
		var e kerneldomain.Event
		var actorKind, ts string
		if err := rows.Scan(&e.EventID, &e.WorkspaceID, &e.TaskID, &actorKind, &e.ActorID, &e.Type, &ts, &e.Data); err != nil {
			return nil, err
		}
		e.ActorKind = kerneldomain.ActorKind(actorKind)
		e.TS = parseTimeOrZero(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}
