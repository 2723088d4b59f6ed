package tasksvc

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

func seedWorkspaceAndAgent(t *testing.T, ctx context.Context, st *store.Store) {
	t.Helper()
	if _, err := st.CreateWorkspace(ctx, "ws-1", "personal"); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	if _, err := st.UpsertAgent(ctx, "ws-1", "agent-1", "orchestrator"); err != nil {
		t.Fatalf("UpsertAgent: %v", err)
	}
}

func TestVerifyMinArtifactsPassesAfterEnoughArtifacts(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedWorkspaceAndAgent(t, ctx, st)

	task, err := svc.Create(ctx, "ws-1", "agent-1", "write a report", "summarize findings", kerneldomain.Contract{
		Objective:        "ship a report",
		AcceptanceChecks: []kerneldomain.AcceptanceCheck{{Type: "min_artifacts", Count: 2}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := svc.Verify(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Succeeded {
		t.Fatal("expected verification to fail with zero artifacts")
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected exactly one failure, got %v", result.Failures)
	}

	for i := 0; i < 2; i++ {
		if err := st.InsertArtifact(ctx, kerneldomain.Artifact{
			ArtifactID: "art-" + string(rune('a'+i)), TaskID: task.TaskID, WorkspaceID: "ws-1",
			ActorKind: kerneldomain.ActorAgent, ActorID: "agent-1", Type: "note", Content: "x",
		}); err != nil {
			t.Fatalf("InsertArtifact: %v", err)
		}
	}

	result, err = svc.Verify(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected verification to succeed, got failures: %v", result.Failures)
	}

	got, err := svc.Get(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != kerneldomain.TaskSucceeded {
		t.Fatalf("expected task status succeeded, got %s", got.Status)
	}
}

func TestVerifySubagentsFinishedFailsWhileOneIsRunning(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedWorkspaceAndAgent(t, ctx, st)

	task, err := svc.Create(ctx, "ws-1", "agent-1", "t", "i", kerneldomain.Contract{
		Objective:        "o",
		AcceptanceChecks: []kerneldomain.AcceptanceCheck{{Type: "subagents_finished"}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := st.CreateSubagent(ctx, kerneldomain.Subagent{
		SubagentID: "sub-1", ParentAgentID: "agent-1", WorkspaceID: "ws-1", TaskID: task.TaskID, WorkerType: "default",
	}); err != nil {
		t.Fatalf("CreateSubagent: %v", err)
	}

	result, err := svc.Verify(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Succeeded {
		t.Fatal("expected verification to fail while subagent is still created/running")
	}

	if err := st.UpdateSubagentStatus(ctx, "sub-1", kerneldomain.SubagentCreated, kerneldomain.SubagentRunning); err != nil {
		t.Fatalf("UpdateSubagentStatus to running: %v", err)
	}
	if err := st.UpdateSubagentStatus(ctx, "sub-1", kerneldomain.SubagentRunning, kerneldomain.SubagentFinished); err != nil {
		t.Fatalf("UpdateSubagentStatus to finished: %v", err)
	}

	result, err = svc.Verify(ctx, task.TaskID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("expected verification to succeed once the subagent finished, got: %v", result.Failures)
	}
}

func TestCreateRequiresAgentInSameWorkspace(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	seedWorkspaceAndAgent(t, ctx, st)
	if _, err := st.CreateWorkspace(ctx, "ws-2", "personal"); err != nil {
		t.Fatalf("CreateWorkspace ws-2: %v", err)
	}

	_, err := svc.Create(ctx, "ws-2", "agent-1", "t", "i", kerneldomain.Contract{Objective: "o"})
	if err == nil {
		t.Fatal("expected agent/workspace mismatch to be rejected")
	}
}
