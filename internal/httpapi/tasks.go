package httpapi

import (
	"net/http"

	"clawos/internal/apierr"
	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
)

type createTaskRequest struct {
	WorkspaceID    string                    `json:"workspace_id"`
	CreatedByAgent string                    `json:"created_by_agent_id"`
	Title          string                    `json:"title"`
	Intent         string                    `json:"intent"`
	Contract       kerneldomain.Contract     `json:"contract"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.CreatedByAgent == "" {
		writeError(w, apierr.MissingField("workspace_id/created_by_agent_id"))
		return
	}

	task, err := s.tasks.Create(r.Context(), req.WorkspaceID, req.CreatedByAgent, req.Title, req.Intent, req.Contract)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskSnapshot(task, nil, nil))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "id")
	task, err := s.tasks.Get(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	subs, err := s.store.ListSubagentsByTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	artifacts, err := s.store.ListArtifactsByTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskSnapshot(task, subs, artifacts))
}

func taskSnapshot(task kerneldomain.Task, subs []kerneldomain.Subagent, artifacts []kerneldomain.Artifact) map[string]any {
	return map[string]any{
		"ok": true, "task_id": task.TaskID, "workspace_id": task.WorkspaceID, "title": task.Title,
		"intent": task.Intent, "contract": task.Contract, "status": task.Status,
		"subagents": subs, "artifacts": artifacts,
	}
}

func (s *Server) handleListTaskEvents(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "id")
	events, err := s.store.ListEventsByTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "events": events})
}

func (s *Server) handleVerifyTask(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "id")
	result, err := s.tasks.Verify(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "succeeded": result.Succeeded, "failures": result.Failures})
}

type attachArtifactRequest struct {
	WorkspaceID string            `json:"workspace_id"`
	ActorKind   kerneldomain.ActorKind `json:"actor_kind"`
	ActorID     string            `json:"actor_id"`
	Type        string            `json:"type"`
	Content     string            `json:"content"`
	URI         string            `json:"uri"`
	Metadata    map[string]string `json:"metadata"`
}

func (s *Server) handleAttachArtifact(w http.ResponseWriter, r *http.Request) {
	taskID := pathParam(r, "id")
	var req attachArtifactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.ActorID == "" {
		writeError(w, apierr.MissingField("workspace_id/actor_id"))
		return
	}
	if _, err := s.tasks.Get(r.Context(), taskID); err != nil {
		writeError(w, err)
		return
	}

	artifactID := idgen.New("art")
	if err := s.store.InsertArtifact(r.Context(), kerneldomain.Artifact{
		ArtifactID: artifactID, TaskID: taskID, WorkspaceID: req.WorkspaceID,
		ActorKind: req.ActorKind, ActorID: req.ActorID, Type: req.Type, Content: req.Content,
		URI: req.URI, Metadata: req.Metadata,
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "artifact_id": artifactID})
}
