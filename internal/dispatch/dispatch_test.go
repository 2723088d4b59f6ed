package dispatch

import (
	"context"
	"log"
	"path/filepath"
	"testing"
	"time"

	"clawos/internal/apierr"
	"clawos/internal/approvalsvc"
	"clawos/internal/auditlog"
	"clawos/internal/kerneldomain"
	"clawos/internal/kernelcrypto"
	"clawos/internal/policy"
	"clawos/internal/store"
	"clawos/internal/tokensvc"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kernel.sqlite"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	aesKey, err := kernelcrypto.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	crypto, err := kernelcrypto.New(aesKey, "")
	if err != nil {
		t.Fatalf("kernelcrypto.New: %v", err)
	}

	pol := policy.New(st)
	appr := approvalsvc.New(st, 10*time.Minute, time.Hour)
	tok := tokensvc.New(st, crypto, 10*time.Minute, time.Hour)
	audit := auditlog.New(st, log.New(log.Writer(), "", 0))

	svc := New(st, pol, appr, tok, audit, DefaultRegistry(), 10*time.Minute)
	if _, err := st.CreateWorkspace(context.Background(), "ws-1", "personal"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	return svc, st
}

func asAPIErr(t *testing.T, err error) *apierr.Error {
	t.Helper()
	var apiErr *apierr.Error
	if err == nil {
		t.Fatal("expected an error")
	}
	if ae, ok := err.(*apierr.Error); ok {
		return ae
	}
	t.Fatalf("expected *apierr.Error, got %T: %v", err, err)
	return apiErr
}

func TestSubmitLowRiskCompletesImmediately(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "web_search",
		Payload: []byte(`{"query":"go generics"}`), RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != kerneldomain.ActionCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if res.ApprovalRequired {
		t.Fatal("low-risk action should not require approval")
	}
}

func TestSubmitIdempotentRetrySamePayloadReturnsCachedResult(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	payload := []byte(`{"query":"go generics"}`)
	first, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "web_search",
		Payload: payload, RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	second, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "web_search",
		Payload: payload, RequestID: "req-1",
	})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if string(second.Result) != string(first.Result) {
		t.Fatalf("expected identical cached result, got %s vs %s", second.Result, first.Result)
	}
}

func TestSubmitIdempotentRetryDifferentPayloadConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	if _, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "web_search",
		Payload: []byte(`{"query":"a"}`), RequestID: "req-1",
	}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	_, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "web_search",
		Payload: []byte(`{"query":"b"}`), RequestID: "req-1",
	})
	ae := asAPIErr(t, err)
	if ae.Code != "conflict" {
		t.Fatalf("expected conflict, got %s", ae.Code)
	}
}

func TestSubmitHighRiskRequiresApprovalThenCompletesWithCap(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	res, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "run_shell",
		Payload: []byte(`{"cmd":"ls"}`), RequestID: "req-2",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.ApprovalRequired || res.ApprovalID == "" {
		t.Fatalf("expected approval_required with an approval id, got %+v", res)
	}

	appr := approvalsvc.New(st, 10*time.Minute, time.Hour)
	if _, err := appr.DecideAction(ctx, res.ApprovalID, true, "looks fine"); err != nil {
		t.Fatalf("DecideAction: %v", err)
	}

	cap, err := svc.IssueActionCap(ctx, res.ApprovalID, "ws-1", "req-2", "run_shell")
	if err != nil {
		t.Fatalf("IssueActionCap: %v", err)
	}

	final, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "run_shell",
		Payload: []byte(`{"cmd":"ls"}`), RequestID: "req-2", ApprovalToken: cap,
	})
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if final.Status != kerneldomain.ActionCompleted {
		t.Fatalf("expected completed after approval, got %s", final.Status)
	}
}

func TestSubmitUnknownActionFails(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	// An unrecognized action_type defaults to "ask" (conservative writes
	// assumption); force auto mode so the handler lookup itself is
	// exercised rather than the approval gate.
	if err := st.UpsertRiskPolicy(ctx, kerneldomain.RiskPolicy{
		ActionType: "teleport", WorkspaceID: "ws-1", Mode: kerneldomain.ModeAuto,
	}); err != nil {
		t.Fatalf("UpsertRiskPolicy: %v", err)
	}

	_, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-1", AgentID: "agent-1", ActionType: "teleport",
		Payload: []byte(`{}`), RequestID: "req-3",
	})
	ae := asAPIErr(t, err)
	if ae.Code != "unknown_action" {
		t.Fatalf("expected unknown_action, got %s", ae.Code)
	}
}

func TestSubmitUnknownWorkspaceFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Submit(ctx, SubmitRequest{
		WorkspaceID: "ws-ghost", AgentID: "agent-1", ActionType: "web_search",
		Payload: []byte(`{}`), RequestID: "req-4",
	})
	ae := asAPIErr(t, err)
	if ae.Code != "workspace_not_found" {
		t.Fatalf("expected workspace_not_found, got %s", ae.Code)
	}
}
