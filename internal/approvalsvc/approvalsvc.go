// Package approvalsvc implements the two human-in-the-loop approval
// paths of spec.md §4.6: action-level approvals tied to one action
// request, and DCT approval requests (DARs) tied to a token mint.
// Grounded on tools/credentials-mcp/main.go's requestSecret →
// resolveRequest → revealSecret triad: a request is created pending,
// a human decides it, and only a granted decision unlocks the next
// step — reimplemented here as in-process dispatcher state instead of
// MCP tool calls.
package approvalsvc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clawos/internal/apierr"
	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

type Service struct {
	store *store.Store

	ttlDefault time.Duration
	ttlMax     time.Duration
}

func New(st *store.Store, ttlDefault, ttlMax time.Duration) *Service {
	return &Service{store: st, ttlDefault: ttlDefault, ttlMax: ttlMax}
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.ttlDefault
	}
	if ttl > s.ttlMax {
		return s.ttlMax
	}
	return ttl
}

// CreateActionApproval inserts a pending action-level approval, used by
// the dispatcher's "ask" branch (spec.md §4.5 step 6).
func (s *Service) CreateActionApproval(ctx context.Context, workspaceID, actionRequestID, requestedBy string) (kerneldomain.Approval, error) {
	a := kerneldomain.Approval{
		ApprovalID:      idgen.New("appr"),
		WorkspaceID:     workspaceID,
		ActionRequestID: actionRequestID,
		RequestedBy:     requestedBy,
		ExpiresAt:       time.Now().UTC().Add(s.clampTTL(0)),
	}
	if err := s.store.InsertApproval(ctx, a); err != nil {
		return kerneldomain.Approval{}, err
	}
	return s.store.GetApproval(ctx, a.ApprovalID)
}

// DecideAction transitions a pending approval to approved/rejected.
// Re-deciding an already-decided approval surfaces as already_<decision>.
func (s *Service) DecideAction(ctx context.Context, approvalID string, approve bool, reason string) (kerneldomain.Approval, error) {
	cur, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Approval{}, apierr.ErrApprovalNotFound
		}
		return kerneldomain.Approval{}, err
	}
	if cur.Status != kerneldomain.ApprovalPending {
		return kerneldomain.Approval{}, apierr.AlreadyDecided(string(cur.Status))
	}

	status := kerneldomain.ApprovalRejected
	if approve {
		status = kerneldomain.ApprovalApproved
	}
	if err := s.store.DecideApproval(ctx, approvalID, status, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Approval{}, apierr.AlreadyDecided(string(cur.Status))
		}
		return kerneldomain.Approval{}, err
	}
	return s.store.GetApproval(ctx, approvalID)
}

// GetAction loads an action-level approval, treating an expired
// pending row as denied-on-read per spec.md §4.6.
func (s *Service) GetAction(ctx context.Context, approvalID string) (kerneldomain.Approval, error) {
	a, err := s.store.GetApproval(ctx, approvalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.Approval{}, apierr.ErrApprovalNotFound
		}
		return kerneldomain.Approval{}, err
	}
	if a.Expired(time.Now().UTC()) {
		a.Status = kerneldomain.ApprovalRejected
	}
	return a, nil
}

// IsActionApproved reports whether a given approval is a live, granted
// approval bound to workspaceID/actionRequestID, enforcing the binding
// invariants spec.md §4.5's approval-token verification step names.
func (s *Service) IsActionApproved(ctx context.Context, approvalID, workspaceID, actionRequestID string) error {
	a, err := s.GetAction(ctx, approvalID)
	if err != nil {
		return err
	}
	if a.WorkspaceID != workspaceID {
		return apierr.ErrApprovalWorkspaceMismatch
	}
	if a.ActionRequestID != actionRequestID {
		return apierr.ErrApprovalActionMismatch
	}
	if a.Status != kerneldomain.ApprovalApproved {
		return apierr.ErrApprovalNotGranted
	}
	if !time.Now().UTC().Before(a.ExpiresAt) {
		return apierr.ErrExpired
	}
	return nil
}

// CreateDAR inserts a pending DCT approval request, used by the token
// service's "ask" branch when tokens/request resolves to a risky scope.
func (s *Service) CreateDAR(ctx context.Context, workspaceID, requestedByAgent string, issueToKind kerneldomain.IssuedToKind, issueToID string, scope kerneldomain.Scope, riskLevel kerneldomain.RiskLevel) (kerneldomain.DAR, error) {
	ttl := s.clampTTL(0)
	d := kerneldomain.DAR{
		DARID:            idgen.New("dar"),
		WorkspaceID:      workspaceID,
		RequestedByAgent: requestedByAgent,
		IssueToKind:      issueToKind,
		IssueToID:        issueToID,
		Scope:            scope,
		TTLSeconds:       int(ttl.Seconds()),
		RiskLevel:        riskLevel,
		ExpiresAt:        time.Now().UTC().Add(ttl),
	}
	if err := s.store.InsertDAR(ctx, d); err != nil {
		return kerneldomain.DAR{}, err
	}
	return s.store.GetDAR(ctx, d.DARID)
}

// DecideDAR transitions a pending DAR to granted/denied.
func (s *Service) DecideDAR(ctx context.Context, darID string, grant bool) (kerneldomain.DAR, error) {
	cur, err := s.store.GetDAR(ctx, darID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.DAR{}, apierr.ErrDCTApprovalNotFound
		}
		return kerneldomain.DAR{}, err
	}
	if cur.Status != kerneldomain.DARPending {
		return kerneldomain.DAR{}, apierr.AlreadyDecided(string(cur.Status))
	}

	status := kerneldomain.DARDenied
	if grant {
		status = kerneldomain.DARGranted
	}
	if err := s.store.DecideDAR(ctx, darID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.DAR{}, apierr.AlreadyDecided(string(cur.Status))
		}
		return kerneldomain.DAR{}, err
	}
	return s.store.GetDAR(ctx, darID)
}

// ResolveGrantedDAR re-validates a DAR at tokens/request re-invoke
// time: must be granted, unexpired, and requested by the same agent
// that is now re-invoking tokens/request with this dar_id.
func (s *Service) ResolveGrantedDAR(ctx context.Context, darID, workspaceID, requestingAgent string) (kerneldomain.DAR, error) {
	d, err := s.store.GetDAR(ctx, darID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kerneldomain.DAR{}, apierr.ErrDCTApprovalNotFound
		}
		return kerneldomain.DAR{}, err
	}
	if d.WorkspaceID != workspaceID || d.RequestedByAgent != requestingAgent {
		return kerneldomain.DAR{}, apierr.ErrWorkspaceMismatch
	}
	switch d.Status {
	case kerneldomain.DARDenied:
		return kerneldomain.DAR{}, apierr.ErrDCTApprovalDenied
	case kerneldomain.DARPending:
		return kerneldomain.DAR{}, apierr.ErrApprovalRequired
	}
	if !time.Now().UTC().Before(d.ExpiresAt) {
		return kerneldomain.DAR{}, apierr.ErrDCTApprovalExpired
	}
	return d, nil
}
