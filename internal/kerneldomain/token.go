package kerneldomain

import "time"

type IssuedToKind string

const (
	IssuedToAgent    IssuedToKind = "agent"
	IssuedToSubagent IssuedToKind = "subagent"

	// IssuedToActionCap marks an action-level cap token minted after an
	// approval decision (spec.md §4.6), bound to one action_request_id
	// rather than an agent/subagent identity. It is stored in the same
	// dcts table and verified through the same bearer machinery.
	IssuedToActionCap IssuedToKind = "action_cap"
)

// DCT is a Delegation Capability Token: a signed, expiring bearer that
// authorizes an agent or subagent to execute tools within Scope.
//
// Invariants (enforced by the token service, not here):
//  1. subagent-kind tokens carry a non-empty ParentAgentID.
//  2. a token is bound to one issue-target and one action-type context.
//  3. expiry is checked on every verification.
//  4. bearer wire form is "<token_id>.<base64url-hmac>".
type DCT struct {
	TokenID       string
	WorkspaceID   string
	IssuedToKind  IssuedToKind
	IssuedToID    string
	ParentAgentID string
	TaskID        string
	Scope         Scope
	TTLSeconds    int
	ExpiresAt     time.Time
	Revoked       bool
	CreatedAt     time.Time
}

func (t DCT) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
