package session

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
)

// goalShiftPhrases are heuristic signals that a new message abandons
// the session's current objective rather than continuing it. A real
// deployment would route this through an LLM classifier instead; this
// is the deterministic fallback, grounded on resetKeywords' shape.
var goalShiftPhrases = []string{
	"new task", "different question", "forget that", "ignore previous", "start a new objective", "never mind that",
}

func looksLikeGoalShift(normalized string) bool {
	for _, phrase := range goalShiftPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// ObjectiveResolution is the cognitive objective a caller should track
// for this turn, plus whether it was just created.
type ObjectiveResolution struct {
	Objective kerneldomain.CognitiveObjective
	IsNew     bool
}

// ResolveObjective applies the same continue/new chain as Resolve, but
// over a session's cognitive objective rather than its session row: no
// existing objective, or the existing one already reached a terminal
// status, or the message heuristically abandons it, all start a fresh
// objective; otherwise the existing one continues.
func (s *Service) ResolveObjective(ctx context.Context, sessionID, userMessage string, deliverable kerneldomain.RequiredDeliverable) (ObjectiveResolution, error) {
	normalized := strings.ToLower(strings.TrimSpace(userMessage))

	existing, err := s.store.GetLatestObjectiveBySession(ctx, sessionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fresh, err := s.createObjective(ctx, sessionID, userMessage, deliverable)
		if err != nil {
			return ObjectiveResolution{}, err
		}
		return ObjectiveResolution{Objective: fresh, IsNew: true}, nil
	case err != nil:
		return ObjectiveResolution{}, err
	}

	if existing.Status != kerneldomain.ObjectiveInProgress || looksLikeGoalShift(normalized) {
		fresh, err := s.createObjective(ctx, sessionID, userMessage, deliverable)
		if err != nil {
			return ObjectiveResolution{}, err
		}
		return ObjectiveResolution{Objective: fresh, IsNew: true}, nil
	}

	return ObjectiveResolution{Objective: existing, IsNew: false}, nil
}

func (s *Service) createObjective(ctx context.Context, sessionID, goal string, deliverable kerneldomain.RequiredDeliverable) (kerneldomain.CognitiveObjective, error) {
	o := kerneldomain.CognitiveObjective{
		ObjectiveID: idgen.New("obj"), SessionID: sessionID, Goal: strings.TrimSpace(goal),
		RequiredDeliverable: deliverable, Status: kerneldomain.ObjectiveInProgress,
	}
	if err := s.store.InsertObjective(ctx, o); err != nil {
		return kerneldomain.CognitiveObjective{}, err
	}
	return s.store.GetObjective(ctx, o.ObjectiveID)
}

// RecordTurn appends one exchange to the objective's turn history.
func (s *Service) RecordTurn(ctx context.Context, objectiveID, role, content string) error {
	return s.store.InsertTurn(ctx, objectiveID, kerneldomain.Turn{
		TurnID: idgen.New("turn"), Role: role, Content: content,
	})
}

// RecordToolEvidence appends proof that a named tool actually ran
// within an objective, so SanitizeClaims can verify output claims
// against it.
func (s *Service) RecordToolEvidence(ctx context.Context, objectiveID, toolName, summary string) error {
	return s.store.InsertToolEvidence(ctx, objectiveID, kerneldomain.ToolEvidence{
		EvidenceID: idgen.New("evd"), ToolName: toolName, Summary: summary,
	})
}

// CompleteObjective marks an objective as having produced its required
// deliverable.
func (s *Service) CompleteObjective(ctx context.Context, objectiveID string) error {
	return s.store.UpdateObjectiveStatus(ctx, objectiveID, kerneldomain.ObjectiveCompleted)
}

// FailObjective marks an objective as unable to produce its required
// deliverable.
func (s *Service) FailObjective(ctx context.Context, objectiveID string) error {
	return s.store.UpdateObjectiveStatus(ctx, objectiveID, kerneldomain.ObjectiveFailed)
}

// claimPattern pairs a phrase an assistant reply might use to claim it
// did something with the tool_name that claim must be backed by.
type claimPattern struct {
	phrase       string
	requiresTool string
}

var claimPatterns = []claimPattern{
	{"i searched the web", "web_search"},
	{"i looked it up online", "web_search"},
	{"i read the file", "fs_read"},
	{"i wrote the file", "fs_write"},
	{"i sent the email", "send_email"},
	{"i ran the command", "run_shell"},
	{"i made the http request", "http_request"},
}

const unsupportedClaimNote = " [unverified: no matching tool evidence]"

// SanitizeClaims flags tool-use claims in an assistant reply that
// aren't backed by this objective's recorded tool evidence, appending
// an inline note rather than silently trusting the model's narration.
func SanitizeClaims(objective kerneldomain.CognitiveObjective, reply string) string {
	normalized := strings.ToLower(reply)

	hasEvidence := func(tool string) bool {
		for _, e := range objective.ToolEvidence {
			if e.ToolName == tool {
				return true
			}
		}
		return false
	}

	out := reply
	for _, p := range claimPatterns {
		if strings.Contains(normalized, p.phrase) && !hasEvidence(p.requiresTool) {
			out += unsupportedClaimNote
		}
	}
	return out
}
