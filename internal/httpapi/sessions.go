package httpapi

import (
	"net/http"

	"clawos/internal/apierr"
)

type resolveSessionRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Channel     string `json:"channel"`
	RemoteJID   string `json:"remote_jid"`
	Message     string `json:"message"`
}

func (s *Server) handleSessionsResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WorkspaceID == "" || req.Channel == "" || req.RemoteJID == "" {
		writeError(w, apierr.MissingField("workspace_id/channel/remote_jid"))
		return
	}

	res, err := s.sessions.Resolve(r.Context(), req.WorkspaceID, req.Channel, req.RemoteJID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "session_id": res.Session.SessionID, "decision": res.Reason, "reason": res.Reason,
		"turn_count": res.Session.TurnCount, "context_summary": res.Session.ContextSummary,
	})
}

type advanceSessionRequest struct {
	UserMessage     string `json:"user_message"`
	AssistantReply  string `json:"assistant_reply"`
}

func (s *Server) handleSessionsAdvance(w http.ResponseWriter, r *http.Request) {
	sessionID := pathParam(r, "id")
	var req advanceSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.sessions.Advance(r.Context(), sessionID, req.UserMessage, req.AssistantReply)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "session_id": sess.SessionID, "turn_count": sess.TurnCount, "context_summary": sess.ContextSummary,
	})
}
