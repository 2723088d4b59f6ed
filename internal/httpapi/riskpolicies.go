package httpapi

import (
	"net/http"

	"clawos/internal/apierr"
	"clawos/internal/kerneldomain"
)

func (s *Server) handleListRiskPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.store.ListRiskPolicies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "risk_policies": policies})
}

type putRiskPolicyRequest struct {
	WorkspaceID string                  `json:"workspace_id"`
	Mode        kerneldomain.PolicyMode `json:"mode"`
}

func (s *Server) handlePutRiskPolicy(w http.ResponseWriter, r *http.Request) {
	actionType := pathParam(r, "action")
	var req putRiskPolicyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Mode == "" {
		writeError(w, apierr.MissingField("mode"))
		return
	}
	workspaceID := req.WorkspaceID
	if workspaceID == "" {
		workspaceID = kerneldomain.WildcardWorkspace
	}

	if err := s.store.UpsertRiskPolicy(r.Context(), kerneldomain.RiskPolicy{
		ActionType: actionType, WorkspaceID: workspaceID, Mode: req.Mode,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "action_type": actionType, "workspace_id": workspaceID, "mode": req.Mode})
}
