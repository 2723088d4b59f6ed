// Package dispatch implements the Action Dispatcher: idempotent
// submission, policy gating, handler execution, and result
// persistence, per spec.md §4.5. Grounded on
// apps/ReleaseParty/backend/internal/api/server.go's straight-line
// request handling (validate -> do the thing -> persist -> respond)
// with the approval gate adapted from
// tools/credentials-mcp/main.go's requestSecret/resolveRequest split.
package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"clawos/internal/apierr"
	"clawos/internal/approvalsvc"
	"clawos/internal/auditlog"
	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/policy"
	"clawos/internal/store"
	"clawos/internal/tokensvc"
)

type Service struct {
	store      *store.Store
	policy     *policy.Service
	approvals  *approvalsvc.Service
	tokens     *tokensvc.Service
	audit      *auditlog.Log
	registry   Registry
	approvalTTL time.Duration
}

func New(st *store.Store, pol *policy.Service, appr *approvalsvc.Service, tok *tokensvc.Service, audit *auditlog.Log, reg Registry, approvalTTL time.Duration) *Service {
	return &Service{store: st, policy: pol, approvals: appr, tokens: tok, audit: audit, registry: reg, approvalTTL: approvalTTL}
}

// SubmitRequest is the input to one dispatch attempt.
type SubmitRequest struct {
	WorkspaceID   string
	AgentID       string
	ActionType    string
	Payload       []byte
	RequestID     string // optional; generated if empty
	ApprovalToken string // optional "<id>.<sig>" cap token from tokens/issue

	// CallerHasOperatorApprovals marks a nested dispatch invoked from
	// within a worker handler under an outer, already-verified DCT
	// (spec.md §4.7 step 4): it bypasses the approval gate for this call.
	CallerHasOperatorApprovals bool
}

// SubmitResult is the dispatcher's response. Exactly one of Result
// (on completed) or ApprovalID (on approval_required) is populated.
type SubmitResult struct {
	RequestID        string
	Status           kerneldomain.ActionRequestStatus
	ApprovalRequired bool
	ApprovalID       string
	RiskLevel        kerneldomain.RiskLevel
	Result           json.RawMessage
}

func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if _, err := s.store.GetWorkspace(ctx, req.WorkspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SubmitResult{}, apierr.ErrWorkspaceNotFound
		}
		return SubmitResult{}, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = idgen.New("ar")
	}

	ar := kerneldomain.ActionRequest{
		RequestID: requestID, WorkspaceID: req.WorkspaceID, AgentID: req.AgentID,
		ActionType: req.ActionType, Payload: req.Payload,
	}
	err := s.store.InsertActionRequestPending(ctx, ar)
	switch {
	case err == nil:
		// fresh row, proceed through the full gate below
	case errors.Is(err, store.ErrExists):
		existing, getErr := s.store.GetActionRequest(ctx, requestID)
		if getErr != nil {
			return SubmitResult{}, getErr
		}
		if !store.SamePayload(existing.Payload, req.Payload) {
			return SubmitResult{}, apierr.ErrConflict
		}
		// Same request_id, same payload: a terminal row is returned
		// verbatim (P1); a pending/approval_required row falls through
		// so a retry carrying a fresh approval token can complete it.
		if existing.Status == kerneldomain.ActionCompleted || existing.Status == kerneldomain.ActionFailed {
			return SubmitResult{RequestID: requestID, Status: existing.Status, Result: json.RawMessage(existing.Result)}, nil
		}
	default:
		return SubmitResult{}, err
	}

	handler, known := s.registry[req.ActionType]
	writes := true
	if known {
		writes = handler.Meta.Writes
	}

	mode, err := s.policy.ResolveMode(ctx, req.ActionType, req.WorkspaceID, writes)
	if err != nil {
		return SubmitResult{}, err
	}

	if mode == kerneldomain.ModeBlock {
		s.finishFailed(ctx, req, requestID, "blocked", 0)
		return SubmitResult{}, apierr.ErrBlocked
	}

	if mode == kerneldomain.ModeAsk {
		approved := req.ApprovalToken != "" && s.tokens.VerifyActionCap(ctx, req.ApprovalToken, req.WorkspaceID, requestID, req.ActionType)
		if !approved && !req.CallerHasOperatorApprovals {
			riskLevel := kerneldomain.RiskMedium
			if known {
				riskLevel = handler.Meta.RiskLevel
			}
			if err := s.store.UpdateActionRequestStatus(ctx, requestID, kerneldomain.ActionApprovalRequired, true, ""); err != nil {
				return SubmitResult{}, err
			}
			a, err := s.approvals.CreateActionApproval(ctx, req.WorkspaceID, requestID, req.AgentID)
			if err != nil {
				return SubmitResult{}, err
			}
			return SubmitResult{
				RequestID: requestID, Status: kerneldomain.ActionApprovalRequired,
				ApprovalRequired: true, ApprovalID: a.ApprovalID, RiskLevel: riskLevel,
			}, nil
		}
	}

	if !known {
		s.finishFailed(ctx, req, requestID, "unknown_action", 0)
		return SubmitResult{}, apierr.ErrUnknownAction
	}

	started := time.Now()
	out, runErr := handler.Run(ctx, json.RawMessage(req.Payload))
	elapsed := time.Since(started).Milliseconds()
	if runErr != nil {
		s.finishFailed(ctx, req, requestID, runErr.Error(), elapsed)
		return SubmitResult{}, apierr.Runtime("handler_error", runErr.Error())
	}

	resultJSON, err := json.Marshal(out)
	if err != nil {
		s.finishFailed(ctx, req, requestID, err.Error(), elapsed)
		return SubmitResult{}, err
	}
	if err := s.store.UpdateActionRequestStatus(ctx, requestID, kerneldomain.ActionCompleted, false, string(resultJSON)); err != nil {
		return SubmitResult{}, err
	}
	s.audit.RecordCompletion(ctx, req.WorkspaceID, requestID, req.AgentID, req.ActionType, elapsed)

	return SubmitResult{RequestID: requestID, Status: kerneldomain.ActionCompleted, Result: resultJSON}, nil
}

func (s *Service) finishFailed(ctx context.Context, req SubmitRequest, requestID, reason string, elapsedMS int64) {
	_ = s.store.UpdateActionRequestStatus(ctx, requestID, kerneldomain.ActionFailed, false, `{"error":"`+reason+`"}`)
	s.audit.RecordFailure(ctx, req.WorkspaceID, requestID, req.AgentID, req.ActionType, reason, elapsedMS)
}

// IssueActionCap mints the cap token a caller presents alongside
// request_id on retry, after an action-level approval is granted.
func (s *Service) IssueActionCap(ctx context.Context, approvalID, workspaceID, actionRequestID, toolName string) (string, error) {
	if err := s.approvals.IsActionApproved(ctx, approvalID, workspaceID, actionRequestID); err != nil {
		return "", err
	}
	return s.tokens.MintActionCap(ctx, workspaceID, actionRequestID, toolName, s.approvalTTL)
}
