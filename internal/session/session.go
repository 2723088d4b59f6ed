// Package session implements the Session Resolver's decision chain
// (spec.md §4.9): given one inbound message, decide whether to
// continue the existing conversational session or start a new one.
// Grounded on internal/policy's ordered-fallback resolution shape.
package session

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"clawos/internal/idgen"
	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

// DriftClassifier scores how likely userMessage has drifted off the
// session's current topic, in [0,1]. Callers wire an LLM-backed
// implementation; nil disables step 5 regardless of Enabled.
type DriftClassifier func(ctx context.Context, existing kerneldomain.Session, userMessage string) (float64, error)

var resetKeywords = []string{"reset", "/reset", "start over", "new session", "new conversation"}

const driftThreshold = 0.80

type Service struct {
	store   *store.Store
	timeout time.Duration

	enableDrift bool
	drift       DriftClassifier
}

func New(st *store.Store, timeout time.Duration, enableDrift bool, drift DriftClassifier) *Service {
	return &Service{store: st, timeout: timeout, enableDrift: enableDrift, drift: drift}
}

func isResetKeyword(normalized string) bool {
	for _, kw := range resetKeywords {
		if normalized == kw {
			return true
		}
	}
	return false
}

// Resolution is the session a caller should use for this turn, plus
// which branch of the decision chain produced it.
type Resolution struct {
	Session kerneldomain.Session
	Reason  kerneldomain.ResolutionReason
}

// Resolve implements the ordered decision chain: explicit_reset,
// no_session, session_closed, timeout, topic_drift, continue.
func (s *Service) Resolve(ctx context.Context, workspaceID, channel, remoteJID, userMessage string) (Resolution, error) {
	normalized := strings.ToLower(strings.TrimSpace(userMessage))

	existing, err := s.store.GetLatestSession(ctx, workspaceID, channel, remoteJID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fresh, err := s.create(ctx, workspaceID, channel, remoteJID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Session: fresh, Reason: kerneldomain.ReasonNoSession}, nil
	case err != nil:
		return Resolution{}, err
	}

	if isResetKeyword(normalized) {
		if existing.Status == kerneldomain.SessionActive {
			if err := s.store.CloseSession(ctx, existing.SessionID); err != nil {
				return Resolution{}, err
			}
		}
		fresh, err := s.create(ctx, workspaceID, channel, remoteJID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Session: fresh, Reason: kerneldomain.ReasonExplicitReset}, nil
	}

	if existing.Status == kerneldomain.SessionClosed {
		fresh, err := s.create(ctx, workspaceID, channel, remoteJID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Session: fresh, Reason: kerneldomain.ReasonSessionClosed}, nil
	}

	if time.Since(existing.LastMessageAt) > s.timeout {
		if err := s.store.CloseSession(ctx, existing.SessionID); err != nil {
			return Resolution{}, err
		}
		fresh, err := s.create(ctx, workspaceID, channel, remoteJID)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Session: fresh, Reason: kerneldomain.ReasonTimeout}, nil
	}

	if s.enableDrift && s.drift != nil {
		score, err := s.drift(ctx, existing, userMessage)
		if err == nil && score >= driftThreshold {
			if err := s.store.CloseSession(ctx, existing.SessionID); err != nil {
				return Resolution{}, err
			}
			fresh, err := s.create(ctx, workspaceID, channel, remoteJID)
			if err != nil {
				return Resolution{}, err
			}
			return Resolution{Session: fresh, Reason: kerneldomain.ReasonTopicDrift}, nil
		}
	}

	return Resolution{Session: existing, Reason: kerneldomain.ReasonContinue}, nil
}

func (s *Service) create(ctx context.Context, workspaceID, channel, remoteJID string) (kerneldomain.Session, error) {
	return s.store.InsertSession(ctx, kerneldomain.Session{
		SessionID: idgen.New("sess"), WorkspaceID: workspaceID, Channel: channel, RemoteJID: remoteJID,
	})
}

// Advance records one assistant turn: increments turn_count, refreshes
// last_message_at, and regenerates context_summary via the
// deterministic template fallback (no LLM summarizer is wired).
func (s *Service) Advance(ctx context.Context, sessionID string, userMessage, assistantReply string) (kerneldomain.Session, error) {
	existing, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return kerneldomain.Session{}, err
	}
	summary := templateSummary(existing.ContextSummary, userMessage, assistantReply)
	return s.store.AdvanceSession(ctx, sessionID, summary)
}

// templateSummary appends the latest exchange to the running summary,
// keeping only the most recent text under the fixed character cap.
func templateSummary(prior, userMessage, assistantReply string) string {
	var b strings.Builder
	if prior != "" {
		b.WriteString(prior)
		b.WriteString(" | ")
	}
	b.WriteString("user: ")
	b.WriteString(strings.TrimSpace(userMessage))
	b.WriteString(" -> assistant: ")
	b.WriteString(strings.TrimSpace(assistantReply))
	out := b.String()
	if len(out) <= kerneldomain.ContextSummaryMaxChars {
		return out
	}
	return out[len(out)-kerneldomain.ContextSummaryMaxChars:]
}
