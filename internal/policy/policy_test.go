package policy

import (
	"context"
	"path/filepath"
	"testing"

	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kernel.sqlite"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st), st
}

func TestResolveModeStaticDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mode, err := svc.ResolveMode(ctx, "web_search", "ws-1", false)
	if err != nil || mode != kerneldomain.ModeAuto {
		t.Fatalf("non-writing default: mode=%v err=%v", mode, err)
	}
	mode, err = svc.ResolveMode(ctx, "run_shell", "ws-1", true)
	if err != nil || mode != kerneldomain.ModeAsk {
		t.Fatalf("writing default: mode=%v err=%v", mode, err)
	}
}

func TestResolveModeExactBeatsWildcardBeatsDefault(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	st.UpsertRiskPolicy(ctx, kerneldomain.RiskPolicy{ActionType: "run_shell", WorkspaceID: kerneldomain.WildcardWorkspace, Mode: kerneldomain.ModeBlock})
	mode, _ := svc.ResolveMode(ctx, "run_shell", "ws-1", true)
	if mode != kerneldomain.ModeBlock {
		t.Fatalf("expected wildcard block, got %v", mode)
	}

	st.UpsertRiskPolicy(ctx, kerneldomain.RiskPolicy{ActionType: "run_shell", WorkspaceID: "ws-1", Mode: kerneldomain.ModeAuto})
	mode, _ = svc.ResolveMode(ctx, "run_shell", "ws-1", true)
	if mode != kerneldomain.ModeAuto {
		t.Fatalf("expected exact-workspace auto to win, got %v", mode)
	}
}

func TestEvaluateScopeLowRiskAutoApproved(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	eval, err := svc.EvaluateScope(ctx, "ws-1", kerneldomain.Scope{AllowedTools: []string{"web_search"}}, "")
	if err != nil {
		t.Fatalf("EvaluateScope: %v", err)
	}
	if eval.Blocked || eval.ApprovalRequired || eval.RiskLevel != kerneldomain.RiskLow {
		t.Fatalf("unexpected eval: %+v", eval)
	}
}

func TestEvaluateScopeCriticalContractEscalatesAutoToAsk(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	eval, err := svc.EvaluateScope(ctx, "ws-1", kerneldomain.Scope{AllowedTools: []string{"web_search"}}, kerneldomain.CriticalityCritical)
	if err != nil {
		t.Fatalf("EvaluateScope: %v", err)
	}
	if eval.Blocked || !eval.ApprovalRequired || eval.RiskLevel != kerneldomain.RiskLow {
		t.Fatalf("expected a critical contract to escalate an auto tool to ask, got %+v", eval)
	}
}

func TestEvaluateScopeHighRiskRequiresApproval(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	eval, err := svc.EvaluateScope(ctx, "ws-1", kerneldomain.Scope{AllowedTools: []string{"run_shell"}}, "")
	if err != nil {
		t.Fatalf("EvaluateScope: %v", err)
	}
	if eval.Blocked || !eval.ApprovalRequired || eval.RiskLevel != kerneldomain.RiskHigh {
		t.Fatalf("unexpected eval: %+v", eval)
	}
}

func TestEvaluateScopeBlockedToolShortCircuits(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	st.UpsertRiskPolicy(ctx, kerneldomain.RiskPolicy{ActionType: "fs_write", WorkspaceID: "ws-1", Mode: kerneldomain.ModeBlock})

	eval, err := svc.EvaluateScope(ctx, "ws-1", kerneldomain.Scope{AllowedTools: []string{"web_search", "fs_write", "run_shell"}}, "")
	if err != nil {
		t.Fatalf("EvaluateScope: %v", err)
	}
	if !eval.Blocked || eval.BlockedTool != "fs_write" {
		t.Fatalf("unexpected eval: %+v", eval)
	}
}
