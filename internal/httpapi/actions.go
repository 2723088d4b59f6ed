package httpapi

import (
	"encoding/json"
	"net/http"

	"clawos/internal/apierr"
	"clawos/internal/dispatch"
)

type submitActionRequest struct {
	WorkspaceID   string          `json:"workspace_id"`
	AgentID       string          `json:"agent_id"`
	ActionType    string          `json:"action_type"`
	Payload       json.RawMessage `json:"payload"`
	RequestID     string          `json:"request_id"`
	ApprovalToken string          `json:"approval_token"`
}

func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var req submitActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.AgentID == "" || req.ActionType == "" {
		writeError(w, apierr.MissingField("workspace_id/agent_id/action_type"))
		return
	}

	result, err := s.dispatch.Submit(r.Context(), dispatch.SubmitRequest{
		WorkspaceID: req.WorkspaceID, AgentID: req.AgentID, ActionType: req.ActionType,
		Payload: req.Payload, RequestID: req.RequestID, ApprovalToken: req.ApprovalToken,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"ok": true, "request_id": result.RequestID, "status": result.Status}
	if result.ApprovalRequired {
		resp["approval_required"] = true
		resp["approval_id"] = result.ApprovalID
		resp["risk_level"] = result.RiskLevel
	}
	if result.Result != nil {
		resp["result"] = result.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

type approvalDecisionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleApprovalApprove(w http.ResponseWriter, r *http.Request) {
	approvalID := pathParam(r, "id")
	var req approvalDecisionRequest
	_ = decodeJSON(r, &req)

	approval, err := s.approvals.DecideAction(r.Context(), approvalID, true, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{"ok": true, "approval_id": approval.ApprovalID, "status": approval.Status}
	if ar, err := s.store.GetActionRequest(r.Context(), approval.ActionRequestID); err == nil {
		if bearer, err := s.dispatch.IssueActionCap(r.Context(), approval.ApprovalID, approval.WorkspaceID, approval.ActionRequestID, ar.ActionType); err == nil {
			resp["cap_token"] = bearer
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleApprovalReject(w http.ResponseWriter, r *http.Request) {
	approvalID := pathParam(r, "id")
	var req approvalDecisionRequest
	_ = decodeJSON(r, &req)

	approval, err := s.approvals.DecideAction(r.Context(), approvalID, false, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "approval_id": approval.ApprovalID, "status": approval.Status})
}
