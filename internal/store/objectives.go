package store

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
)

func (s *Store) InsertObjective(ctx context.Context, o kerneldomain.CognitiveObjective) error {
	deliverable, err := o.RequiredDeliverable.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objectives (objective_id, session_id, goal, required_deliverable, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, o.ObjectiveID, o.SessionID, o.Goal, deliverable, o.Status, nowRFC3339())
	return err
}

// GetObjective loads an objective together with its tool evidence and
// turns, each list in creation order (oldest first).
func (s *Store) GetObjective(ctx context.Context, id string) (kerneldomain.CognitiveObjective, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT objective_id, session_id, goal, required_deliverable, status, created_at
		FROM objectives WHERE objective_id = ?
	`, id)
	var o kerneldomain.CognitiveObjective
	var deliverable, status, created string
	if err := row.Scan(&o.ObjectiveID, &o.SessionID, &o.Goal, &deliverable, &status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.CognitiveObjective{}, sql.ErrNoRows
		}
		return kerneldomain.CognitiveObjective{}, err
	}
	o.Status = kerneldomain.ObjectiveStatus(status)
	o.CreatedAt = parseTimeOrZero(created)
	rd, err := kerneldomain.DecodeRequiredDeliverable(deliverable)
	if err != nil {
		return kerneldomain.CognitiveObjective{}, err
	}
	o.RequiredDeliverable = rd

	evidence, err := s.listToolEvidence(ctx, id)
	if err != nil {
		return kerneldomain.CognitiveObjective{}, err
	}
	o.ToolEvidence = evidence

	turns, err := s.listTurns(ctx, id)
	if err != nil {
		return kerneldomain.CognitiveObjective{}, err
	}
	o.Turns = turns
	return o, nil
}

// GetLatestObjectiveBySession returns the most recently created
// objective for a session. sql.ErrNoRows if none exists yet.
func (s *Store) GetLatestObjectiveBySession(ctx context.Context, sessionID string) (kerneldomain.CognitiveObjective, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT objective_id FROM objectives WHERE session_id = ? ORDER BY created_at DESC LIMIT 1
	`, sessionID)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.CognitiveObjective{}, sql.ErrNoRows
		}
		return kerneldomain.CognitiveObjective{}, err
	}
	return s.GetObjective(ctx, id)
}

func (s *Store) UpdateObjectiveStatus(ctx context.Context, id string, status kerneldomain.ObjectiveStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE objectives SET status = ? WHERE objective_id = ?`, status, id)
	return err
}

func (s *Store) InsertToolEvidence(ctx context.Context, objectiveID string, e kerneldomain.ToolEvidence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objective_tool_evidence (evidence_id, objective_id, tool_name, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.EvidenceID, objectiveID, e.ToolName, e.Summary, nowRFC3339())
	return err
}

func (s *Store) listToolEvidence(ctx context.Context, objectiveID string) ([]kerneldomain.ToolEvidence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT evidence_id, tool_name, summary, created_at
		FROM objective_tool_evidence WHERE objective_id = ? ORDER BY created_at ASC
	`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kerneldomain.ToolEvidence
	for rows.Next() {
		var e kerneldomain.ToolEvidence
		var created string
		if err := rows.Scan(&e.EvidenceID, &e.ToolName, &e.Summary, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTimeOrZero(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) InsertTurn(ctx context.Context, objectiveID string, t kerneldomain.Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objective_turns (turn_id, objective_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, t.TurnID, objectiveID, t.Role, t.Content, nowRFC3339())
	return err
}

func (s *Store) listTurns(ctx context.Context, objectiveID string) ([]kerneldomain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, role, content, created_at
		FROM objective_turns WHERE objective_id = ? ORDER BY created_at ASC
	`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []kerneldomain.Turn
	for rows.Next() {
		var t kerneldomain.Turn
		var created string
		if err := rows.Scan(&t.TurnID, &t.Role, &t.Content, &created); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTimeOrZero(created)
		out = append(out, t)
	}
	return out, rows.Err()
}
