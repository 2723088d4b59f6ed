// Package tasksvc implements contract-first task creation and
// acceptance-check verification, per spec.md §4.8. Grounded on the
// same validate-then-persist shape as internal/identity and
// internal/dispatch.
package tasksvc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clawos/internal/apierr"
	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

type Service struct {
	store *store.Store
}

func New(st *store.Store) *Service { return &Service{store: st} }

// Create validates the workspace and creating agent exist in the same
// workspace, then inserts a queued task under its contract.
func (s *Service) Create(ctx context.Context, workspaceID, createdByAgent, title, intent string, contract kerneldomain.Contract) (kerneldomain.Task, error) {
	if _, err := s.store.GetWorkspace(ctx, workspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Task{}, apierr.ErrWorkspaceNotFound
		}
		return kerneldomain.Task{}, err
	}
	agent, err := s.store.GetAgent(ctx, createdByAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Task{}, apierr.ErrAgentNotFound
		}
		return kerneldomain.Task{}, err
	}
	if agent.WorkspaceID != workspaceID {
		return kerneldomain.Task{}, apierr.ErrAgentWorkspaceMismatch
	}

	return s.store.CreateTask(ctx, kerneldomain.Task{
		TaskID: idgen.New("task"), WorkspaceID: workspaceID, CreatedByAgent: createdByAgent,
		Title: title, Intent: intent, Contract: contract,
	})
}

func (s *Service) Get(ctx context.Context, taskID string) (kerneldomain.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Task{}, apierr.ErrTaskNotFound
		}
		return kerneldomain.Task{}, err
	}
	return t, nil
}

// VerificationResult is the outcome of evaluating a task's
// acceptance_checks array.
type VerificationResult struct {
	Succeeded bool
	Failures  []string
}

// Verify evaluates every acceptance check in the task's contract.
// Passing all of them transitions the task to succeeded; any failure
// leaves the task's current status untouched and returns the list of
// reasons, per spec.md §4.8.
func (s *Service) Verify(ctx context.Context, taskID string) (VerificationResult, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return VerificationResult{}, err
	}

	var failures []string
	for _, check := range task.Contract.AcceptanceChecks {
		switch check.Type {
		case "min_artifacts":
			n, err := s.store.CountArtifactsByTask(ctx, taskID)
			if err != nil {
				return VerificationResult{}, err
			}
			if n < check.Count {
				failures = append(failures, fmt.Sprintf("min_artifacts: need %d, have %d", check.Count, n))
			}
		case "subagents_finished":
			subs, err := s.store.ListSubagentsByTask(ctx, taskID)
			if err != nil {
				return VerificationResult{}, err
			}
			for _, sub := range subs {
				if sub.Status != kerneldomain.SubagentFinished {
					failures = append(failures, fmt.Sprintf("subagents_finished: %s is %s", sub.SubagentID, sub.Status))
				}
			}
		default:
			failures = append(failures, fmt.Sprintf("unsupported acceptance check type: %s", check.Type))
		}
	}

	if len(failures) > 0 {
		return VerificationResult{Succeeded: false, Failures: failures}, nil
	}

	if err := s.store.UpdateTaskStatus(ctx, taskID, kerneldomain.TaskSucceeded); err != nil {
		return VerificationResult{}, err
	}
	data, err := kerneldomain.EncodeEventData(struct {
		TaskID string `json:"task_id"`
	}{TaskID: taskID})
	if err == nil {
		_ = s.store.InsertEvent(ctx, kerneldomain.Event{
			EventID: idgen.New("evt"), WorkspaceID: task.WorkspaceID, TaskID: taskID,
			ActorKind: kerneldomain.ActorSystem, Type: kerneldomain.EventTaskVerified, Data: data,
		})
	}
	return VerificationResult{Succeeded: true}, nil
}
