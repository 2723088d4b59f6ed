// Command clawos-kernel boots the Kernel's HTTP surface: load config,
// open the store, construct every service, then serve until SIGTERM or
// SIGINT, mirroring the teacher's releaseparty-api entrypoint.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clawos/internal/approvalsvc"
	"clawos/internal/auditlog"
	"clawos/internal/dispatch"
	"clawos/internal/httpapi"
	"clawos/internal/identity"
	"clawos/internal/kernelconfig"
	"clawos/internal/kernelcrypto"
	"clawos/internal/kerneldomain"
	"clawos/internal/policy"
	"clawos/internal/session"
	"clawos/internal/store"
	"clawos/internal/tasksvc"
	"clawos/internal/tokensvc"
	"clawos/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "clawos-kernel ", log.LstdFlags|log.LUTC)

	cfg, err := kernelconfig.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	defer st.Close()

	aesKeyHex, err := ensureMasterKey(st)
	if err != nil {
		logger.Fatalf("master key: %v", err)
	}
	hmacKey := ""
	if cfg.RecoveryPhrase != "" {
		hmacKey = kernelcrypto.RecoveryHash(cfg.RecoveryPhrase)
	}
	crypto, err := kernelcrypto.New(aesKeyHex, hmacKey)
	if err != nil {
		logger.Fatalf("crypto: %v", err)
	}

	identitySvc := identity.New(st)
	policySvc := policy.New(st)
	approvalsSvc := approvalsvc.New(st, cfg.ApprovalTTL, cfg.ApprovalTTLMax)
	tokensSvc := tokensvc.New(st, crypto, cfg.DCTTTL, cfg.DCTTTLMax)
	audit := auditlog.New(st, logger)
	dispatchSvc := dispatch.New(st, policySvc, approvalsSvc, tokensSvc, audit, dispatch.DefaultRegistry(), cfg.ApprovalTTL)
	workerSvc := worker.New(st, dispatchSvc, audit, worker.DefaultRegistry())
	tasksSvc := tasksvc.New(st)
	sessionsSvc := session.New(st, cfg.SessionTimeout, cfg.EnableSessionDriftClassifier, nil)

	ctx := context.Background()
	if n, err := tokensSvc.PurgeExpired(ctx); err != nil {
		logger.Printf("purge expired tokens: %v", err)
	} else if n > 0 {
		logger.Printf("purged %d expired tokens", n)
	}
	if err := seedDefaultRiskPolicies(ctx, st); err != nil {
		logger.Printf("seed risk policies: %v", err)
	}

	srv := httpapi.New(httpapi.Deps{
		Config: cfg, Crypto: crypto, Store: st, Identity: identitySvc, Policy: policySvc,
		Tokens: tokensSvc, Approvals: approvalsSvc, Dispatch: dispatchSvc, Worker: workerSvc,
		Tasks: tasksSvc, Sessions: sessionsSvc, Audit: audit, Logger: logger,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Printf("shutting down...")
	_ = httpSrv.Close()
}

// ensureMasterKey generates a random AES-256 key on first boot and
// persists it under kernel_state; every subsequent boot reuses the
// stored value so previously-encrypted connection secrets stay
// decryptable.
func ensureMasterKey(st *store.Store) (string, error) {
	generated, err := kernelcrypto.GenerateMasterKey()
	if err != nil {
		return "", err
	}
	return st.ConnectionsKey(context.Background(), generated)
}

// seedDefaultRiskPolicies installs the wildcard-workspace defaults
// spec.md §4.3 assumes exist out of the box: low-risk reads run
// automatically, everything else asks first.
func seedDefaultRiskPolicies(ctx context.Context, st *store.Store) error {
	defaults := map[string]kerneldomain.PolicyMode{
		"web_search": kerneldomain.ModeAuto,
		"fs_read":    kerneldomain.ModeAuto,
		"fs_write":   kerneldomain.ModeAsk,
		"send_email": kerneldomain.ModeAsk,
		"run_shell":  kerneldomain.ModeAsk,
	}
	for actionType, mode := range defaults {
		if _, err := st.ResolveRiskPolicy(ctx, actionType, kerneldomain.WildcardWorkspace); err == nil {
			continue
		}
		if err := st.UpsertRiskPolicy(ctx, kerneldomain.RiskPolicy{
			ActionType: actionType, WorkspaceID: kerneldomain.WildcardWorkspace, Mode: mode,
		}); err != nil {
			return err
		}
	}
	return nil
}
