package approvalsvc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"clawos/internal/apierr"
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
	return New(st, 10*time.Minute, time.Hour), st
}

func asAPIErr(t *testing.T, err error) *apierr.Error {
	t.Helper()
	var e *apierr.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *apierr.Error, got %v (%T)", err, err)
	}
	return e
}

func TestActionApprovalDecisionIsTerminal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, err := svc.CreateActionApproval(ctx, "ws-1", "req-1", "agent-1")
	if err != nil {
		t.Fatalf("CreateActionApproval: %v", err)
	}

	decided, err := svc.DecideAction(ctx, a.ApprovalID, true, "looks fine")
	if err != nil {
		t.Fatalf("DecideAction: %v", err)
	}
	if decided.Status != kerneldomain.ApprovalApproved {
		t.Fatalf("status = %q", decided.Status)
	}

	_, err = svc.DecideAction(ctx, a.ApprovalID, false, "too late")
	if asAPIErr(t, err).Code != "already_approved" {
		t.Fatalf("err = %v", err)
	}
}

func TestIsActionApprovedEnforcesBinding(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	a, _ := svc.CreateActionApproval(ctx, "ws-1", "req-1", "agent-1")
	if _, err := svc.DecideAction(ctx, a.ApprovalID, true, ""); err != nil {
		t.Fatalf("DecideAction: %v", err)
	}

	if err := svc.IsActionApproved(ctx, a.ApprovalID, "ws-1", "req-1"); err != nil {
		t.Fatalf("expected approved binding to pass, got %v", err)
	}
	if asAPIErr(t, svc.IsActionApproved(ctx, a.ApprovalID, "ws-other", "req-1")).Code != "approval_workspace_id_mismatch" {
		t.Fatal("expected workspace mismatch")
	}
	if asAPIErr(t, svc.IsActionApproved(ctx, a.ApprovalID, "ws-1", "req-other")).Code != "approval_action_request_id_mismatch" {
		t.Fatal("expected action mismatch")
	}
}

func TestDARGrantThenReResolve(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, err := svc.CreateDAR(ctx, "ws-1", "agent-1", kerneldomain.IssuedToSubagent, "sub-1",
		kerneldomain.Scope{AllowedTools: []string{"run_shell"}}, kerneldomain.RiskHigh)
	if err != nil {
		t.Fatalf("CreateDAR: %v", err)
	}

	if _, err := svc.ResolveGrantedDAR(ctx, d.DARID, "ws-1", "agent-1"); !errors.Is(err, apierr.ErrApprovalRequired) {
		t.Fatalf("expected approval_required while pending, got %v", err)
	}

	if _, err := svc.DecideDAR(ctx, d.DARID, true); err != nil {
		t.Fatalf("DecideDAR: %v", err)
	}

	got, err := svc.ResolveGrantedDAR(ctx, d.DARID, "ws-1", "agent-1")
	if err != nil {
		t.Fatalf("ResolveGrantedDAR: %v", err)
	}
	if got.Status != kerneldomain.DARGranted {
		t.Fatalf("status = %q", got.Status)
	}

	if _, err := svc.ResolveGrantedDAR(ctx, d.DARID, "ws-1", "agent-2"); err == nil {
		t.Fatal("expected a different requesting agent to be rejected")
	}
}

func TestDARDeniedSurfacesOnResolve(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, _ := svc.CreateDAR(ctx, "ws-1", "agent-1", kerneldomain.IssuedToSubagent, "sub-1",
		kerneldomain.Scope{AllowedTools: []string{"run_shell"}}, kerneldomain.RiskHigh)
	if _, err := svc.DecideDAR(ctx, d.DARID, false); err != nil {
		t.Fatalf("DecideDAR deny: %v", err)
	}

	_, err := svc.ResolveGrantedDAR(ctx, d.DARID, "ws-1", "agent-1")
	if !errors.Is(err, apierr.ErrDCTApprovalDenied) {
		t.Fatalf("expected dct_approval_denied, got %v", err)
	}
}
