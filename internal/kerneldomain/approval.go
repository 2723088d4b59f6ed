package kerneldomain

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is an action-level approval, tied to exactly one action
// request. Decisions are terminal; an expired pending approval is
// treated as denied on read.
type Approval struct {
	ApprovalID      string
	WorkspaceID     string
	ActionRequestID string
	RequestedBy     string
	Status          ApprovalStatus
	ExpiresAt       time.Time
	DecisionReason  string
	DecidedAt       *time.Time
	CreatedAt       time.Time
}

func (a Approval) Expired(now time.Time) bool {
	return a.Status == ApprovalPending && !now.Before(a.ExpiresAt)
}
