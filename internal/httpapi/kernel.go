package httpapi

import (
	"crypto/subtle"
	"net/http"

	"clawos/internal/apierr"
	"clawos/internal/kernelcrypto"
)

type setupRequest struct {
	RecoveryPhrase string `json:"recovery_phrase"`
}

// handleSetup stores the hash of a recovery phrase exactly once; a
// second call with any phrase is a no-op against the already-stored
// hash, matching spec.md §6.1's "Initialize recovery hash (idempotent)".
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RecoveryPhrase == "" {
		writeError(w, apierr.MissingField("recovery_phrase"))
		return
	}

	hash := kernelcrypto.RecoveryHash(req.RecoveryPhrase)
	stored, err := s.store.SetRecoveryHash(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}

	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "already_initialized": stored != hash})
}

type unlockRequest struct {
	RecoveryPhrase string `json:"recovery_phrase"`
}

// handleUnlock verifies a recovery phrase against the stored hash and,
// on success, clears the process-wide lock gate.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	stored, err := s.store.RecoveryHash(r.Context())
	if err != nil || stored == "" {
		writeError(w, apierr.ErrBadToken)
		return
	}
	candidate := kernelcrypto.RecoveryHash(req.RecoveryPhrase)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(stored)) != 1 {
		writeError(w, apierr.ErrBadToken)
		return
	}

	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
