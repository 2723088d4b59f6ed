package httpapi

import (
	"net/http"

	"clawos/internal/apierr"
)

type createWorkspaceRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Type        string `json:"type"`
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req createWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Type == "" {
		req.Type = "personal"
	}
	if req.WorkspaceID == "" {
		writeError(w, apierr.MissingField("workspace_id"))
		return
	}

	ws, err := s.store.CreateWorkspace(r.Context(), req.WorkspaceID, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "workspace_id": ws.ID, "type": ws.Type})
}

type upsertAgentRequest struct {
	WorkspaceID string `json:"workspace_id"`
	AgentID     string `json:"agent_id"`
	Role        string `json:"role"`
}

func (s *Server) handleUpsertAgent(w http.ResponseWriter, r *http.Request) {
	var req upsertAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.AgentID == "" {
		writeError(w, apierr.MissingField("workspace_id/agent_id"))
		return
	}

	agent, err := s.identity.CreateAgent(r.Context(), req.WorkspaceID, req.AgentID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "agent_id": agent.AgentID, "role": agent.Role})
}
