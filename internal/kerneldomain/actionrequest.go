package kerneldomain

import "time"

type ActionRequestStatus string

const (
	ActionPending           ActionRequestStatus = "pending"
	ActionCompleted         ActionRequestStatus = "completed"
	ActionApprovalRequired  ActionRequestStatus = "approval_required"
	ActionFailed            ActionRequestStatus = "failed"
)

// ActionRequest is a single user-facing invocation of an action
// handler, identified by RequestID for idempotency: the same
// (workspace, request_id) with a different payload is a conflict.
type ActionRequest struct {
	RequestID        string
	WorkspaceID      string
	AgentID          string
	ActionType       string
	Destination      string
	Payload          []byte // raw JSON bytes, compared verbatim for idempotency
	Status           ActionRequestStatus
	ApprovalRequired bool
	Result           string // JSON, set once completed or failed
	CreatedAt        time.Time
}
