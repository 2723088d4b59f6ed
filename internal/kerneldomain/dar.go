package kerneldomain

import "time"

type DARStatus string

const (
	DARPending DARStatus = "pending"
	DARGranted DARStatus = "granted"
	DARDenied  DARStatus = "denied"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// DAR is a DCT Approval Request: a pending human-in-the-loop decision
// required before a DCT is minted. Only agents may request one;
// subagents cannot.
type DAR struct {
	DARID            string
	WorkspaceID      string
	RequestedByAgent string
	IssueToKind      IssuedToKind
	IssueToID        string
	Scope            Scope
	TTLSeconds       int
	RiskLevel        RiskLevel
	Status           DARStatus
	ExpiresAt        time.Time
	CreatedAt        time.Time
	DecidedAt        *time.Time
}

func (d DAR) Expired(now time.Time) bool {
	return d.Status == DARPending && !now.Before(d.ExpiresAt)
}
