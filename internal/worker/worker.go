// Package worker also implements the Worker Runner itself: the
// lifecycle around one subagent's execution (spec.md §4.7), grounded
// on the same atomic-transition pattern internal/identity already uses
// for subagent status.
package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"clawos/internal/apierr"
	"clawos/internal/auditlog"
	"clawos/internal/dispatch"
	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

type Service struct {
	store    *store.Store
	dispatch *dispatch.Service
	audit    *auditlog.Log
	registry Registry
}

func New(st *store.Store, disp *dispatch.Service, audit *auditlog.Log, reg Registry) *Service {
	return &Service{store: st, dispatch: disp, audit: audit, registry: reg}
}

// Run executes one subagent's handler end to end: asserts it is
// runnable, flips it to running, runs the worker_type handler (falling
// back to "default"), persists the result as an artifact, and flips
// the subagent to its terminal status.
func (s *Service) Run(ctx context.Context, subagentID string, input json.RawMessage) error {
	sub, err := s.store.GetSubagent(ctx, subagentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apierr.ErrSubagentNotFound
		}
		return err
	}
	if kerneldomain.IsTerminal(sub.Status) {
		return apierr.SubagentAlready(string(sub.Status))
	}

	if err := s.store.UpdateSubagentStatus(ctx, subagentID, kerneldomain.SubagentCreated, kerneldomain.SubagentRunning); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either already running (started concurrently) or already
			// terminal; either way this invocation does not own the run.
			return apierr.SubagentAlready(string(sub.Status))
		}
		return err
	}
	s.emit(ctx, sub, kerneldomain.EventWorkerStarted, kerneldomain.WorkerStartedData{SubagentID: subagentID, WorkerType: sub.WorkerType})

	handler, ok := s.registry[sub.WorkerType]
	if !ok {
		handler = s.registry["default"]
	}

	rc := RunContext{
		WorkspaceID: sub.WorkspaceID,
		TaskID:      sub.TaskID,
		SubagentID:  sub.SubagentID,
		Dispatch: func(ctx context.Context, actionType string, payload json.RawMessage) (json.RawMessage, error) {
			bypass, err := s.canBypassApproval(ctx, sub, actionType)
			if err != nil {
				return nil, err
			}
			res, err := s.dispatch.Submit(ctx, dispatch.SubmitRequest{
				WorkspaceID: sub.WorkspaceID, AgentID: sub.ParentAgentID, ActionType: actionType,
				Payload: payload, CallerHasOperatorApprovals: bypass,
			})
			if err != nil {
				return nil, err
			}
			return res.Result, nil
		},
	}

	content, runErr := handler(ctx, rc, input)
	if runErr != nil {
		_ = s.store.UpdateSubagentStatus(ctx, subagentID, kerneldomain.SubagentRunning, kerneldomain.SubagentFailed)
		s.emit(ctx, sub, kerneldomain.EventWorkerFailed, kerneldomain.WorkerFailedData{SubagentID: subagentID, Error: runErr.Error()})
		return runErr
	}

	artifactID := idgen.New("art")
	if err := s.store.InsertArtifact(ctx, kerneldomain.Artifact{
		ArtifactID: artifactID, TaskID: sub.TaskID, WorkspaceID: sub.WorkspaceID,
		ActorKind: kerneldomain.ActorSubagent, ActorID: sub.SubagentID,
		Type: sub.WorkerType, Content: content,
	}); err != nil {
		return err
	}
	if err := s.store.UpdateSubagentStatus(ctx, subagentID, kerneldomain.SubagentRunning, kerneldomain.SubagentFinished); err != nil {
		return err
	}
	s.emit(ctx, sub, kerneldomain.EventWorkerCompleted, kerneldomain.WorkerCompletedData{SubagentID: subagentID, ArtifactID: artifactID})
	return nil
}

// canBypassApproval decides whether a nested dispatch from sub's
// handler can skip the approval gate. An atomic or open-ended subagent
// bypasses unconditionally (spec.md §4.7 step 4). A bounded subagent
// bypasses only when the requested tool is within its own task's
// contract scope (Scope.Subset; a tool equal to the whole scope
// passes), and is otherwise sent through the approval gate — the same
// ceiling tokensvc.Service.Mint enforces when minting a subagent's own
// DCT in the first place.
func (s *Service) canBypassApproval(ctx context.Context, sub kerneldomain.Subagent, actionType string) (bool, error) {
	if sub.Autonomy != kerneldomain.AutonomyBounded {
		return true, nil
	}
	task, err := s.store.GetTask(ctx, sub.TaskID)
	if err != nil {
		return false, err
	}
	requested := kerneldomain.Scope{AllowedTools: []string{actionType}}
	return requested.Subset(task.Contract.Scope), nil
}

func (s *Service) emit(ctx context.Context, sub kerneldomain.Subagent, eventType string, data any) {
	encoded, err := kerneldomain.EncodeEventData(data)
	if err != nil {
		return
	}
	_ = s.store.InsertEvent(ctx, kerneldomain.Event{
		EventID: idgen.New("evt"), WorkspaceID: sub.WorkspaceID, TaskID: sub.TaskID,
		ActorKind: kerneldomain.ActorSubagent, ActorID: sub.SubagentID, Type: eventType, Data: encoded,
	})
}
