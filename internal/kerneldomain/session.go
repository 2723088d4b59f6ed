package kerneldomain

import "time"

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

const ContextSummaryMaxChars = 1000

// Session is per-sender conversational context, bounded by timeout and
// reset keywords.
type Session struct {
	SessionID      string
	WorkspaceID    string
	Channel        string
	RemoteJID      string
	Status         SessionStatus
	TurnCount      int
	ContextSummary string
	CreatedAt      time.Time
	LastMessageAt  time.Time
}

// ResolutionReason names the decision-chain branch that produced a
// session resolution.
type ResolutionReason string

const (
	ReasonExplicitReset ResolutionReason = "explicit_reset"
	ReasonNoSession     ResolutionReason = "no_session"
	ReasonSessionClosed ResolutionReason = "session_closed"
	ReasonTimeout        ResolutionReason = "timeout"
	ReasonTopicDrift     ResolutionReason = "topic_drift"
	ReasonContinue       ResolutionReason = "continue"
)
