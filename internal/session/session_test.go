package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kernel.sqlite"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if _, err := st.CreateWorkspace(context.Background(), "ws-1", "personal"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	return st
}

func TestResolveCreatesSessionWhenNoneExists(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := New(st, 30*time.Minute, false, nil)

	res, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "hello there")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Reason != kerneldomain.ReasonNoSession {
		t.Fatalf("expected no_session, got %s", res.Reason)
	}
	if res.Session.Status != kerneldomain.SessionActive {
		t.Fatalf("expected active session, got %s", res.Session.Status)
	}
}

func TestResolveContinuesWithinTimeout(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := New(st, 30*time.Minute, false, nil)

	first, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "hello")
	if err != nil {
		t.Fatalf("Resolve first: %v", err)
	}

	second, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "how are you")
	if err != nil {
		t.Fatalf("Resolve second: %v", err)
	}
	if second.Reason != kerneldomain.ReasonContinue {
		t.Fatalf("expected continue, got %s", second.Reason)
	}
	if second.Session.SessionID != first.Session.SessionID {
		t.Fatal("expected the same session to be reused")
	}
}

func TestResolveExplicitResetStartsNewSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := New(st, 30*time.Minute, false, nil)

	first, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "hello")
	if err != nil {
		t.Fatalf("Resolve first: %v", err)
	}

	second, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "  /reset  ")
	if err != nil {
		t.Fatalf("Resolve second: %v", err)
	}
	if second.Reason != kerneldomain.ReasonExplicitReset {
		t.Fatalf("expected explicit_reset, got %s", second.Reason)
	}
	if second.Session.SessionID == first.Session.SessionID {
		t.Fatal("expected a brand new session after reset")
	}

	closed, err := st.GetSession(ctx, first.Session.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if closed.Status != kerneldomain.SessionClosed {
		t.Fatalf("expected prior session closed, got %s", closed.Status)
	}
}

func TestResolveTimeoutStartsNewSession(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := New(st, 0, false, nil) // zero timeout: any elapsed time triggers it

	first, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "hello")
	if err != nil {
		t.Fatalf("Resolve first: %v", err)
	}
	time.Sleep(time.Millisecond)

	second, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "still there?")
	if err != nil {
		t.Fatalf("Resolve second: %v", err)
	}
	if second.Reason != kerneldomain.ReasonTimeout {
		t.Fatalf("expected timeout, got %s", second.Reason)
	}
	if second.Session.SessionID == first.Session.SessionID {
		t.Fatal("expected a brand new session after timeout")
	}
}

func TestResolveTopicDriftDisabledByDefault(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	alwaysDrifts := func(ctx context.Context, existing kerneldomain.Session, msg string) (float64, error) {
		return 0.99, nil
	}
	svc := New(st, 30*time.Minute, false, alwaysDrifts)

	first, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "hello")
	if err != nil {
		t.Fatalf("Resolve first: %v", err)
	}
	second, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "totally different topic")
	if err != nil {
		t.Fatalf("Resolve second: %v", err)
	}
	if second.Reason != kerneldomain.ReasonContinue {
		t.Fatalf("expected continue since drift classifier is disabled, got %s", second.Reason)
	}
	if second.Session.SessionID != first.Session.SessionID {
		t.Fatal("expected the same session since drift detection is off")
	}
}

func TestResolveTopicDriftWhenEnabled(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	alwaysDrifts := func(ctx context.Context, existing kerneldomain.Session, msg string) (float64, error) {
		return 0.95, nil
	}
	svc := New(st, 30*time.Minute, true, alwaysDrifts)

	first, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "hello")
	if err != nil {
		t.Fatalf("Resolve first: %v", err)
	}
	second, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "totally different topic")
	if err != nil {
		t.Fatalf("Resolve second: %v", err)
	}
	if second.Reason != kerneldomain.ReasonTopicDrift {
		t.Fatalf("expected topic_drift, got %s", second.Reason)
	}
	if second.Session.SessionID == first.Session.SessionID {
		t.Fatal("expected a new session once drift is detected")
	}
}

func TestAdvanceIncrementsTurnCountAndSummary(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := New(st, 30*time.Minute, false, nil)

	res, err := svc.Resolve(ctx, "ws-1", "whatsapp", "+15551234567", "hello")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	updated, err := svc.Advance(ctx, res.Session.SessionID, "hello", "hi, how can I help?")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if updated.TurnCount != 1 {
		t.Fatalf("expected turn_count 1, got %d", updated.TurnCount)
	}
	if updated.ContextSummary == "" {
		t.Fatal("expected a non-empty context summary")
	}
}
