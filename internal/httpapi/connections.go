package httpapi

import (
	"database/sql"
	"errors"
	"net/http"

	"clawos/internal/apierr"
	"clawos/internal/kerneldomain"
)

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.store.ListConnections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(conns))
	for _, c := range conns {
		out = append(out, connectionSummary(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "connections": out})
}

// connectionSummary never echoes the encrypted secret back to a
// caller; a connection's presence and health are all the HTTP surface
// exposes.
func connectionSummary(c kerneldomain.Connection) map[string]any {
	return map[string]any{
		"provider": c.Provider, "status": c.Status, "last_tested_at": c.LastTestedAt,
		"last_error": c.LastError, "updated_at": c.UpdatedAt,
	}
}

func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	provider := pathParam(r, "provider")
	c, err := s.store.GetConnection(r.Context(), provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, apierr.NotFound("connection_not_found"))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, connectionSummary(c))
}

type putConnectionRequest struct {
	Secret string `json:"secret"`
}

// handlePutConnection encrypts the provided secret at rest via the
// kernel's AES-256-GCM envelope before it ever reaches the database.
func (s *Server) handlePutConnection(w http.ResponseWriter, r *http.Request) {
	provider := pathParam(r, "provider")
	var req putConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Secret == "" {
		writeError(w, apierr.MissingField("secret"))
		return
	}

	encrypted, err := s.crypto.Encrypt(req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.UpsertConnection(r.Context(), kerneldomain.Connection{
		Provider: provider, EncryptedSecret: encrypted, Status: "unverified",
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "provider": provider})
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	provider := pathParam(r, "provider")
	if err := s.store.DeleteConnection(r.Context(), provider); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
