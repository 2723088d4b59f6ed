// Package identity enforces CRUD and binding invariants for agents and
// subagents, grounded on apps/ReleaseParty/backend/internal/store's
// assertion helpers (fetch-or-typed-error) extended with the
// parent/workspace binding checks spec.md §4.2 requires.
package identity

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/apierr"
	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

type Service struct {
	store *store.Store
}

func New(st *store.Store) *Service { return &Service{store: st} }

// CreateAgent upserts an agent identity; idempotent on agent_id.
func (s *Service) CreateAgent(ctx context.Context, workspaceID, agentID, role string) (kerneldomain.Agent, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Agent{}, apierr.ErrWorkspaceNotFound
		}
		return kerneldomain.Agent{}, err
	}
	return s.store.UpsertAgent(ctx, workspaceID, agentID, role)
}

// AssertAgent loads an agent and verifies it belongs to workspaceID.
func (s *Service) AssertAgent(ctx context.Context, agentID, workspaceID string) (kerneldomain.Agent, error) {
	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Agent{}, apierr.ErrAgentNotFound
		}
		return kerneldomain.Agent{}, err
	}
	if a.WorkspaceID != workspaceID {
		return kerneldomain.Agent{}, apierr.ErrWorkspaceMismatch
	}
	return a, nil
}

// SpawnSubagent requires the parent agent and the task to already exist
// in the same workspace, then inserts a fresh "created" subagent.
func (s *Service) SpawnSubagent(ctx context.Context, workspaceID, parentAgentID, taskID, workerType, stepID string, autonomy kerneldomain.AutonomyLevel) (kerneldomain.Subagent, error) {
	if _, err := s.AssertAgent(ctx, parentAgentID, workspaceID); err != nil {
		return kerneldomain.Subagent{}, err
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Subagent{}, apierr.ErrTaskNotFound
		}
		return kerneldomain.Subagent{}, err
	}
	if task.WorkspaceID != workspaceID {
		return kerneldomain.Subagent{}, apierr.ErrWorkspaceMismatch
	}

	return s.store.CreateSubagent(ctx, kerneldomain.Subagent{
		SubagentID:    idgen.New("sub"),
		ParentAgentID: parentAgentID,
		WorkspaceID:   workspaceID,
		TaskID:        taskID,
		StepID:        stepID,
		WorkerType:    workerType,
		Autonomy:      autonomy,
	})
}

// AssertSubagent loads a subagent and verifies it belongs to
// workspaceID; a subagent missing its parent/task binding fields is
// treated as malformed state rather than a plain not-found.
func (s *Service) AssertSubagent(ctx context.Context, subagentID, workspaceID string) (kerneldomain.Subagent, error) {
	sub, err := s.store.GetSubagent(ctx, subagentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Subagent{}, apierr.ErrSubagentNotFound
		}
		return kerneldomain.Subagent{}, err
	}
	if sub.WorkspaceID != workspaceID {
		return kerneldomain.Subagent{}, apierr.ErrWorkspaceMismatch
	}
	if sub.ParentAgentID == "" || sub.TaskID == "" {
		return kerneldomain.Subagent{}, apierr.BadRequest("missing_agent_or_task_binding")
	}
	return sub, nil
}

// UpdateSubagentStatus applies a monotonic transition and re-reads the
// row. Replay from a terminal status surfaces as subagent_already_<status>.
func (s *Service) UpdateSubagentStatus(ctx context.Context, subagentID string, next kerneldomain.SubagentStatus) (kerneldomain.Subagent, error) {
	cur, err := s.store.GetSubagent(ctx, subagentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Subagent{}, apierr.ErrSubagentNotFound
		}
		return kerneldomain.Subagent{}, err
	}
	if kerneldomain.IsTerminal(cur.Status) {
		return kerneldomain.Subagent{}, apierr.SubagentAlready(string(cur.Status))
	}
	if !kerneldomain.ValidTransition(cur.Status, next) {
		return kerneldomain.Subagent{}, apierr.BadRequest("invalid_subagent_transition")
	}
	if err := s.store.UpdateSubagentStatus(ctx, subagentID, cur.Status, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Subagent{}, apierr.SubagentAlready(string(cur.Status))
		}
		return kerneldomain.Subagent{}, err
	}
	return s.store.GetSubagent(ctx, subagentID)
}
