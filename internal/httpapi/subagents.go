package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"clawos/internal/apierr"
	"clawos/internal/kerneldomain"
)

type spawnSubagentRequest struct {
	WorkspaceID   string                     `json:"workspace_id"`
	ParentAgentID string                     `json:"parent_agent_id"`
	TaskID        string                     `json:"task_id"`
	WorkerType    string                     `json:"worker_type"`
	StepID        string                     `json:"step_id"`
	Autonomy      kerneldomain.AutonomyLevel `json:"autonomy"`
}

func (s *Server) handleSpawnSubagent(w http.ResponseWriter, r *http.Request) {
	var req spawnSubagentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.ParentAgentID == "" || req.TaskID == "" || req.WorkerType == "" {
		writeError(w, apierr.MissingField("workspace_id/parent_agent_id/task_id/worker_type"))
		return
	}

	sub, err := s.identity.SpawnSubagent(r.Context(), req.WorkspaceID, req.ParentAgentID, req.TaskID, req.WorkerType, req.StepID, req.Autonomy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "subagent_id": sub.SubagentID, "status": sub.Status, "autonomy": sub.Autonomy,
	})
}

func bearerFromHeader(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

type runSubagentRequest struct {
	Input json.RawMessage `json:"input"`
}

// handleRunSubagent verifies the bearer DCT is bound to exactly this
// subagent before handing the run off to the worker runner, per
// spec.md §4.7's "token must be bound to this exact subagent" check.
func (s *Server) handleRunSubagent(w http.ResponseWriter, r *http.Request) {
	subagentID := pathParam(r, "id")

	bearer := bearerFromHeader(r)
	if bearer == "" {
		writeError(w, apierr.ErrBadToken)
		return
	}
	dct, err := s.tokens.Verify(r.Context(), bearer)
	if err != nil {
		writeError(w, apierr.ErrBadToken)
		return
	}
	if dct.IssuedToKind != kerneldomain.IssuedToSubagent || dct.IssuedToID != subagentID {
		writeError(w, apierr.ErrTokenNotBoundToSubagent)
		return
	}

	sub, err := s.identity.AssertSubagent(r.Context(), subagentID, dct.WorkspaceID)
	if err != nil {
		writeError(w, err)
		return
	}

	var req runSubagentRequest
	_ = decodeJSON(r, &req)

	if err := s.worker.Run(r.Context(), sub.SubagentID, req.Input); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.store.GetSubagent(r.Context(), subagentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "subagent_id": updated.SubagentID, "status": updated.Status})
}
