package kerneldomain

import "time"

// Agent is a durable, externally-named identity (e.g. a phone number or
// operator login). Only agents may create tasks, request tokens, and
// grant approvals. AgentID is unique process-wide; registration is an
// upsert.
type Agent struct {
	AgentID     string
	WorkspaceID string
	Role        string
	CreatedAt   time.Time
}
