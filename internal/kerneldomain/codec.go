// Package kerneldomain holds the entities and value objects from the
// data model: workspaces, agents, subagents, tasks, tokens, approvals,
// artifacts, events, sessions, objectives, risk policies, connections.
//
// Contract, scope and required_deliverable are persisted as JSON text
// inside an explicit version envelope, so the on-disk form can change
// shape without breaking rows written by an older build. Event data is
// persisted as plain JSON (EncodeEventData), without an envelope.
package kerneldomain

import (
	"encoding/json"
	"fmt"
)

type envelope struct {
	V    int             `json:"v"`
	Data json.RawMessage `json:"data"`
}

// encodeV1 wraps a value in a version-1 envelope and returns its JSON text.
func encodeV1(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	env := envelope{V: 1, Data: data}
	out, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeV1 unwraps a version envelope into dst. Only version 1 is
// currently produced; unknown versions are rejected rather than
// silently misparsed.
func decodeV1(raw string, dst any) error {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.V != 1 {
		return fmt.Errorf("unsupported schema version %d", env.V)
	}
	return json.Unmarshal(env.Data, dst)
}
