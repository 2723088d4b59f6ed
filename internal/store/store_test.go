package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"clawos/internal/kerneldomain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "kernel.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWorkspaceAndAgentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ws, err := s.CreateWorkspace(ctx, "ws-1", "personal")
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if ws.Type != "personal" {
		t.Fatalf("type = %q", ws.Type)
	}

	a, err := s.UpsertAgent(ctx, "ws-1", "agent-1", "orchestrator")
	if err != nil {
		t.Fatalf("UpsertAgent: %v", err)
	}
	if a.Role != "orchestrator" {
		t.Fatalf("role = %q", a.Role)
	}

	a2, err := s.UpsertAgent(ctx, "ws-1", "agent-1", "worker")
	if err != nil {
		t.Fatalf("UpsertAgent (update): %v", err)
	}
	if a2.Role != "worker" {
		t.Fatalf("role not updated, got %q", a2.Role)
	}
}

func TestSubagentMonotonicTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWorkspaceAndAgent(t, s)

	sub, err := s.CreateSubagent(ctx, kerneldomain.Subagent{
		SubagentID: "sub-1", ParentAgentID: "agent-1", WorkspaceID: "ws-1",
		TaskID: "task-1", WorkerType: "default",
	})
	if err != nil {
		t.Fatalf("CreateSubagent: %v", err)
	}
	if sub.Status != kerneldomain.SubagentCreated {
		t.Fatalf("status = %q", sub.Status)
	}

	if err := s.UpdateSubagentStatus(ctx, "sub-1", kerneldomain.SubagentCreated, kerneldomain.SubagentRunning); err != nil {
		t.Fatalf("created->running: %v", err)
	}
	if err := s.UpdateSubagentStatus(ctx, "sub-1", kerneldomain.SubagentRunning, kerneldomain.SubagentFinished); err != nil {
		t.Fatalf("running->finished: %v", err)
	}

	got, err := s.GetSubagent(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubagent: %v", err)
	}
	if got.Status != kerneldomain.SubagentFinished {
		t.Fatalf("final status = %q", got.Status)
	}
	if got.FinishedAt == nil {
		t.Fatal("expected FinishedAt to be set")
	}

	// Replay from the now-terminal state must fail: no row matches the
	// conditional WHERE clause anymore.
	err = s.UpdateSubagentStatus(ctx, "sub-1", kerneldomain.SubagentRunning, kerneldomain.SubagentFailed)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows on replay, got %v", err)
	}
}

func TestActionRequestIdempotency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWorkspaceAndAgent(t, s)

	ar := kerneldomain.ActionRequest{
		RequestID: "req-1", WorkspaceID: "ws-1", AgentID: "agent-1",
		ActionType: "fs.write", Payload: []byte(`{"path":"a.txt"}`),
	}
	if err := s.InsertActionRequestPending(ctx, ar); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err := s.InsertActionRequestPending(ctx, ar)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	stored, err := s.GetActionRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("GetActionRequest: %v", err)
	}
	if !SamePayload(stored.Payload, ar.Payload) {
		t.Fatal("expected identical payload to compare equal")
	}
	if SamePayload(stored.Payload, []byte(`{"path":"b.txt"}`)) {
		t.Fatal("expected different payload to compare unequal")
	}

	if err := s.UpdateActionRequestStatus(ctx, "req-1", kerneldomain.ActionCompleted, false, `{"ok":true}`); err != nil {
		t.Fatalf("UpdateActionRequestStatus: %v", err)
	}
	stored, _ = s.GetActionRequest(ctx, "req-1")
	if stored.Status != kerneldomain.ActionCompleted {
		t.Fatalf("status = %q", stored.Status)
	}
}

func TestApprovalDecisionIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWorkspaceAndAgent(t, s)

	err := s.InsertApproval(ctx, kerneldomain.Approval{
		ApprovalID: "appr-1", WorkspaceID: "ws-1", ActionRequestID: "req-1",
		RequestedBy: "agent-1", ExpiresAt: time.Now().Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("InsertApproval: %v", err)
	}

	if err := s.DecideApproval(ctx, "appr-1", kerneldomain.ApprovalApproved, "looks fine"); err != nil {
		t.Fatalf("DecideApproval: %v", err)
	}
	err = s.DecideApproval(ctx, "appr-1", kerneldomain.ApprovalRejected, "too late")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows on re-decide, got %v", err)
	}

	got, err := s.GetApproval(ctx, "appr-1")
	if err != nil {
		t.Fatalf("GetApproval: %v", err)
	}
	if got.Status != kerneldomain.ApprovalApproved || got.DecisionReason != "looks fine" {
		t.Fatalf("unexpected approval state: %+v", got)
	}
}

func TestDCTRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWorkspaceAndAgent(t, s)

	scope := kerneldomain.Scope{AllowedTools: []string{"fs.read"}}
	dct := kerneldomain.DCT{
		TokenID: "tok-1", WorkspaceID: "ws-1", IssuedToKind: kerneldomain.IssuedToAgent,
		IssuedToID: "agent-1", Scope: scope, TTLSeconds: 600, ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := s.InsertDCT(ctx, dct); err != nil {
		t.Fatalf("InsertDCT: %v", err)
	}

	got, err := s.GetDCT(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetDCT: %v", err)
	}
	if !got.Scope.Subset(scope) || len(got.Scope.AllowedTools) != 1 {
		t.Fatalf("scope round-trip mismatch: %+v", got.Scope)
	}

	if err := s.RevokeDCT(ctx, "tok-1"); err != nil {
		t.Fatalf("RevokeDCT: %v", err)
	}
	got, _ = s.GetDCT(ctx, "tok-1")
	if !got.Revoked {
		t.Fatal("expected revoked = true")
	}

	expired := kerneldomain.DCT{
		TokenID: "tok-2", WorkspaceID: "ws-1", IssuedToKind: kerneldomain.IssuedToAgent,
		IssuedToID: "agent-1", Scope: scope, TTLSeconds: 1, ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := s.InsertDCT(ctx, expired); err != nil {
		t.Fatalf("InsertDCT expired: %v", err)
	}
	n, err := s.DeleteExpiredDCTs(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredDCTs: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, err := s.GetDCT(ctx, "tok-2"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected tok-2 purged, err = %v", err)
	}
}

func TestRiskPolicyResolutionPrefersExactWorkspace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpsertRiskPolicy(ctx, kerneldomain.RiskPolicy{
		ActionType: "fs.write", WorkspaceID: kerneldomain.WildcardWorkspace, Mode: kerneldomain.ModeAsk,
	}); err != nil {
		t.Fatalf("upsert wildcard: %v", err)
	}

	p, err := s.ResolveRiskPolicy(ctx, "fs.write", "ws-1")
	if err != nil {
		t.Fatalf("resolve (wildcard only): %v", err)
	}
	if p.Mode != kerneldomain.ModeAsk {
		t.Fatalf("expected wildcard fallback mode ask, got %q", p.Mode)
	}

	if err := s.UpsertRiskPolicy(ctx, kerneldomain.RiskPolicy{
		ActionType: "fs.write", WorkspaceID: "ws-1", Mode: kerneldomain.ModeAuto,
	}); err != nil {
		t.Fatalf("upsert exact: %v", err)
	}
	p, err = s.ResolveRiskPolicy(ctx, "fs.write", "ws-1")
	if err != nil {
		t.Fatalf("resolve (exact present): %v", err)
	}
	if p.Mode != kerneldomain.ModeAuto {
		t.Fatalf("expected exact-workspace mode to win, got %q", p.Mode)
	}

	p, err = s.ResolveRiskPolicy(ctx, "fs.write", "ws-other")
	if err != nil {
		t.Fatalf("resolve (other workspace): %v", err)
	}
	if p.Mode != kerneldomain.ModeAsk {
		t.Fatalf("expected wildcard fallback mode ask for a workspace with no exact row, got %q", p.Mode)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedWorkspaceAndAgent(t, s)

	sess, err := s.InsertSession(ctx, kerneldomain.Session{
		SessionID: "sess-1", WorkspaceID: "ws-1", Channel: "whatsapp", RemoteJID: "123@s.whatsapp.net",
	})
	if err != nil {
		t.Fatalf("InsertSession: %v", err)
	}
	if sess.Status != kerneldomain.SessionActive || sess.TurnCount != 0 {
		t.Fatalf("unexpected initial session: %+v", sess)
	}

	latest, err := s.GetLatestSession(ctx, "ws-1", "whatsapp", "123@s.whatsapp.net")
	if err != nil {
		t.Fatalf("GetLatestSession: %v", err)
	}
	if latest.SessionID != "sess-1" {
		t.Fatalf("latest session id = %q", latest.SessionID)
	}

	advanced, err := s.AdvanceSession(ctx, "sess-1", "short summary")
	if err != nil {
		t.Fatalf("AdvanceSession: %v", err)
	}
	if advanced.TurnCount != 1 || advanced.ContextSummary != "short summary" {
		t.Fatalf("unexpected advanced session: %+v", advanced)
	}

	if err := s.CloseSession(ctx, "sess-1"); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	closed, _ := s.GetSession(ctx, "sess-1")
	if closed.Status != kerneldomain.SessionClosed {
		t.Fatalf("expected closed, got %q", closed.Status)
	}
}

func TestKernelStateBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.ConnectionsKey(ctx, "generated-key-a")
	if err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if first != "generated-key-a" {
		t.Fatalf("expected first-boot value to win, got %q", first)
	}

	second, err := s.ConnectionsKey(ctx, "generated-key-b")
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if second != "generated-key-a" {
		t.Fatalf("expected pre-existing key to survive a second boot, got %q", second)
	}
}

func seedWorkspaceAndAgent(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.CreateWorkspace(ctx, "ws-1", "personal"); err != nil {
		t.Fatalf("seed CreateWorkspace: %v", err)
	}
	if _, err := s.UpsertAgent(ctx, "ws-1", "agent-1", "orchestrator"); err != nil {
		t.Fatalf("seed UpsertAgent: %v", err)
	}
}
