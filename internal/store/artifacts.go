package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) InsertArtifact(ctx context.Context, a kerneldomain.Artifact) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (artifact_id, task_id, workspace_id, actor_kind, actor_id, type, content, uri, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ArtifactID, a.TaskID, a.WorkspaceID, a.ActorKind, a.ActorID, a.Type, a.Content, a.URI, string(meta), nowRFC3339())
	return err
}

func (s *Store) ListArtifactsByTask(ctx context.Context, taskID string) ([]kerneldomain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT artifact_id, task_id, workspace_id, actor_kind, actor_id, type, content, uri, metadata, created_at
		FROM artifacts WHERE task_id = ? ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kerneldomain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountArtifactsByTask(ctx context.Context, taskID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts WHERE task_id = ?`, taskID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (kerneldomain.Artifact, error) {
	var a kerneldomain.Artifact
	var actorKind, created, meta string
	if err := row.Scan(&a.ArtifactID, &a.TaskID, &a.WorkspaceID, &actorKind, &a.ActorID, &a.Type, &a.Content, &a.URI, &meta, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Artifact{}, sql.ErrNoRows
		}
		return kerneldomain.Artifact{}, err
	}
	a.ActorKind = kerneldomain.ActorKind(actorKind)
	a.CreatedAt = parseTimeOrZero(created)
	_ = json.Unmarshal([]byte(meta), &a.Metadata)
	return a, nil
}
