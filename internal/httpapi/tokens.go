package httpapi

import (
	"context"
	"net/http"
	"time"

	"clawos/internal/apierr"
	"clawos/internal/kerneldomain"
	"clawos/internal/tokensvc"
)

type tokensRequestRequest struct {
	WorkspaceID     string               `json:"workspace_id"`
	RequestingAgent string               `json:"requesting_agent_id"`
	IssueToKind     kerneldomain.IssuedToKind `json:"issue_to_kind"`
	IssueToID       string               `json:"issue_to_id"`
	TaskID          string               `json:"task_id"`
	Scope           kerneldomain.Scope   `json:"scope"`
	TTLSeconds      int                  `json:"ttl_seconds"`
	DARID           string               `json:"dar_id"`
}

// handleTokensRequest implements spec.md §4.6's two-step DCT request
// flow. The first call resolves the requested scope against policy: an
// allow resolves straight to a mint, a block is rejected outright, and
// an ask creates a pending DAR and hands the caller its id instead of
// a token. The caller then re-invokes this same endpoint carrying that
// dar_id once a human has decided it; a granted, unexpired, same-agent
// DAR is re-validated and the token is minted. The DAR row is not marked
// as used, so the same dar_id can mint again until the DAR expires.
func (s *Server) handleTokensRequest(w http.ResponseWriter, r *http.Request) {
	var req tokensRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.RequestingAgent == "" {
		writeError(w, apierr.MissingField("workspace_id/requesting_agent_id"))
		return
	}

	if req.DARID != "" {
		dar, err := s.approvals.ResolveGrantedDAR(r.Context(), req.DARID, req.WorkspaceID, req.RequestingAgent)
		if err != nil {
			writeError(w, err)
			return
		}
		bearer, dct, err := s.tokens.Mint(r.Context(), tokenMintRequestFrom(req, dar.IssueToKind, dar.IssueToID, dar.Scope))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": bearer, "token_id": dct.TokenID, "expires_at": dct.ExpiresAt})
		return
	}

	criticality := s.taskCriticality(r.Context(), req.TaskID)
	eval, err := s.policy.EvaluateScope(r.Context(), req.WorkspaceID, req.Scope, criticality)
	if err != nil {
		writeError(w, err)
		return
	}
	if eval.Blocked {
		writeError(w, apierr.ErrScopeBlocked)
		return
	}
	if eval.ApprovalRequired {
		dar, err := s.approvals.CreateDAR(r.Context(), req.WorkspaceID, req.RequestingAgent, req.IssueToKind, req.IssueToID, req.Scope, eval.RiskLevel)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok": true, "needs_approval": true, "dar_id": dar.DARID, "risk_level": dar.RiskLevel,
		})
		return
	}

	bearer, dct, err := s.tokens.Mint(r.Context(), tokenMintRequestFrom(req, req.IssueToKind, req.IssueToID, req.Scope))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": bearer, "token_id": dct.TokenID, "expires_at": dct.ExpiresAt})
}

// taskCriticality looks up the criticality of the contract backing
// taskID, for escalating policy.EvaluateScope's risk resolution. A
// token request with no associated task (taskID == "") carries no
// criticality signal, which is the zero value and escalates nothing.
func (s *Server) taskCriticality(ctx context.Context, taskID string) kerneldomain.Criticality {
	if taskID == "" {
		return ""
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return ""
	}
	return task.Contract.Criticality
}

func tokenMintRequestFrom(req tokensRequestRequest, issueToKind kerneldomain.IssuedToKind, issueToID string, scope kerneldomain.Scope) tokensvc.MintRequest {
	return tokensvc.MintRequest{
		WorkspaceID: req.WorkspaceID, RequestingAgent: req.RequestingAgent, IssueToKind: issueToKind,
		IssueToID: issueToID, TaskID: req.TaskID, Scope: scope, TTL: time.Duration(req.TTLSeconds) * time.Second,
	}
}

type issueRequest struct {
	WorkspaceID     string               `json:"workspace_id"`
	RequestingAgent string               `json:"requesting_agent_id"`
	IssueToKind     kerneldomain.IssuedToKind `json:"issue_to_kind"`
	IssueToID       string               `json:"issue_to_id"`
	TaskID          string               `json:"task_id"`
	Scope           kerneldomain.Scope   `json:"scope"`
	TTLSeconds      int                  `json:"ttl_seconds"`
}

// handleTokensIssue mints a DCT directly, bypassing scope evaluation.
// Reserved for trusted internal callers (e.g. the worker runner minting
// a subagent's own token); spec.md §4.4 draws no distinction between
// this and tokens/request beyond who is allowed to call it, so both
// share the same Mint enforcement.
func (s *Server) handleTokensIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.RequestingAgent == "" {
		writeError(w, apierr.MissingField("workspace_id/requesting_agent_id"))
		return
	}
	bearer, dct, err := s.tokens.Mint(r.Context(), tokensvc.MintRequest{
		WorkspaceID: req.WorkspaceID, RequestingAgent: req.RequestingAgent, IssueToKind: req.IssueToKind,
		IssueToID: req.IssueToID, TaskID: req.TaskID, Scope: req.Scope, TTL: time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": bearer, "token_id": dct.TokenID, "expires_at": dct.ExpiresAt})
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleTokensVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dct, err := s.tokens.Verify(r.Context(), req.Token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "valid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "valid": true, "token_id": dct.TokenID, "issued_to_kind": dct.IssuedToKind,
		"issued_to_id": dct.IssuedToID, "scope": dct.Scope, "expires_at": dct.ExpiresAt,
	})
}

type darDecisionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleDARGrant(w http.ResponseWriter, r *http.Request) {
	darID := pathParam(r, "id")
	dar, err := s.approvals.DecideDAR(r.Context(), darID, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dar_id": dar.DARID, "status": dar.Status})
}

func (s *Server) handleDARDeny(w http.ResponseWriter, r *http.Request) {
	darID := pathParam(r, "id")
	var req darDecisionRequest
	_ = decodeJSON(r, &req)
	dar, err := s.approvals.DecideDAR(r.Context(), darID, false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dar_id": dar.DARID, "status": dar.Status})
}
