// Package httpapi is the Kernel's synchronous HTTP surface (spec.md
// §6.1): one chi router over the action dispatcher, token/approval
// services, task lifecycle, and session resolver, with every response
// JSON-encoded and every error translated through the kebab-case
// apierr taxonomy. Grounded on
// apps/ReleaseParty/backend/internal/api/server.go's Server{cfg, ...,
// log}/New/Router shape.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"clawos/internal/apierr"
	"clawos/internal/approvalsvc"
	"clawos/internal/auditlog"
	"clawos/internal/dispatch"
	"clawos/internal/identity"
	"clawos/internal/kernelconfig"
	"clawos/internal/kernelcrypto"
	"clawos/internal/policy"
	"clawos/internal/session"
	"clawos/internal/store"
	"clawos/internal/tasksvc"
	"clawos/internal/tokensvc"
	"clawos/internal/worker"
)

// Deps bundles every service the HTTP surface delegates to. Built once
// in main and passed to New.
type Deps struct {
	Config    kernelconfig.Config
	Crypto    *kernelcrypto.Crypto
	Store     *store.Store
	Identity  *identity.Service
	Policy    *policy.Service
	Tokens    *tokensvc.Service
	Approvals *approvalsvc.Service
	Dispatch  *dispatch.Service
	Worker    *worker.Service
	Tasks     *tasksvc.Service
	Sessions  *session.Service
	Audit     *auditlog.Log
	Logger    *log.Logger
	Version   string
}

type Server struct {
	cfg       kernelconfig.Config
	crypto    *kernelcrypto.Crypto
	store     *store.Store
	identity  *identity.Service
	policy    *policy.Service
	tokens    *tokensvc.Service
	approvals *approvalsvc.Service
	dispatch  *dispatch.Service
	worker    *worker.Service
	tasks     *tasksvc.Service
	sessions  *session.Service
	audit     *auditlog.Log
	log       *log.Logger
	version   string
	startedAt time.Time

	mu     sync.Mutex
	locked bool
}

func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "clawos-kernel ", log.LstdFlags|log.LUTC)
	}
	version := d.Version
	if version == "" {
		version = "0.1.0"
	}

	s := &Server{
		cfg: d.Config, crypto: d.Crypto, store: d.Store, identity: d.Identity, policy: d.Policy,
		tokens: d.Tokens, approvals: d.Approvals, dispatch: d.Dispatch, worker: d.Worker,
		tasks: d.Tasks, sessions: d.Sessions, audit: d.Audit, log: logger, version: version,
		startedAt: time.Now(),
	}

	if hash, err := d.Store.RecoveryHash(context.Background()); err == nil && hash != "" {
		s.locked = true
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/kernel/health", s.handleHealth)

	r.Route("/kernel", func(r chi.Router) {
		r.Post("/setup", s.handleSetup)
		r.Post("/unlock", s.handleUnlock)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUnlocked)

			r.Post("/workspaces", s.handleCreateWorkspace)
			r.Post("/agents", s.handleUpsertAgent)

			r.Post("/tasks", s.handleCreateTask)
			r.Get("/tasks/{id}", s.handleGetTask)
			r.Get("/tasks/{id}/events", s.handleListTaskEvents)
			r.Post("/tasks/{id}/verify", s.handleVerifyTask)
			r.Post("/tasks/{id}/artifacts", s.handleAttachArtifact)

			r.Post("/subagents", s.handleSpawnSubagent)
			r.Post("/subagents/{id}/run", s.handleRunSubagent)

			r.Post("/tokens/request", s.handleTokensRequest)
			r.Post("/tokens/issue", s.handleTokensIssue)
			r.Post("/tokens/verify", s.handleTokensVerify)
			r.Post("/dct_approvals/{id}/grant", s.handleDARGrant)
			r.Post("/dct_approvals/{id}/deny", s.handleDARDeny)

			r.Post("/action_requests", s.handleSubmitAction)
			r.Post("/approvals/{id}/approve", s.handleApprovalApprove)
			r.Post("/approvals/{id}/reject", s.handleApprovalReject)

			r.Post("/sessions/resolve", s.handleSessionsResolve)
			r.Patch("/sessions/{id}", s.handleSessionsAdvance)

			r.Get("/connections", s.handleListConnections)
			r.Get("/connections/{provider}", s.handleGetConnection)
			r.Put("/connections/{provider}", s.handlePutConnection)
			r.Delete("/connections/{provider}", s.handleDeleteConnection)

			r.Get("/risk_policies", s.handleListRiskPolicies)
			r.Put("/risk_policies/{action}", s.handlePutRiskPolicy)
		})
	})

	return r
}

// requireUnlocked gates every mutating/reading endpoint except
// /kernel/health, /kernel/setup, and /kernel/unlock behind the
// recovery-phrase lock once one has been set up.
func (s *Server) requireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		locked := s.locked
		s.mu.Unlock()
		if locked {
			writeError(w, apierr.ErrKernelLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		dbStatus = "error"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "uptime_ms": time.Since(s.startedAt).Milliseconds(), "db": dbStatus, "version": s.version,
	})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apierr.BadRequest("bad_request")
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apierr.BadRequest("bad_request")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a service error into the { ok: false, error }
// shape spec.md §6.1 requires. Anything not already a *apierr.Error is
// an unexpected failure: log it, but never leak its detail to the
// caller.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.Status, map[string]any{"ok": false, "error": apiErr.Code})
		return
	}
	log.Printf("internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "internal_error"})
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
