package kerneldomain

import "time"

// Workspace is the root of isolation; every other entity carries a
// WorkspaceID. Workspaces are never deleted while children exist.
type Workspace struct {
	ID        string
	Type      string
	CreatedAt time.Time
}
