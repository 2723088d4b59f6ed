package dispatch

import (
	"context"
	"encoding/json"

	"clawos/internal/kerneldomain"
)

// HandlerFunc runs one action request's payload, returning a
// JSON-serializable result. Concrete third-party API calls are out of
// scope (spec.md §1 Non-goals); handlers here are pure functions that
// echo/validate their input, matching the "treated as pure functions
// receiving decrypted secrets" contract.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// HandlerMeta is handler metadata consulted by the policy engine
// (Writes) and surfaced to operators (spec.md §4.5's handler contract).
type HandlerMeta struct {
	Name        string
	Writes      bool
	RiskLevel   kerneldomain.RiskLevel
	Reversible  bool
	Description string
}

type Handler struct {
	Meta HandlerMeta
	Run  HandlerFunc
}

// Registry is the static action_type -> Handler map. Registered once
// at startup; dynamic registration is explicitly out of scope.
type Registry map[string]Handler

func echo(payload json.RawMessage) (any, error) {
	var v any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
	}
	return map[string]any{"received": v}, nil
}

// DefaultRegistry returns the built-in handler set, grounded on the
// tool vocabulary the policy engine already classifies
// (internal/policy's knownTools).
func DefaultRegistry() Registry {
	return Registry{
		"web_search": {
			Meta: HandlerMeta{Name: "web_search", Writes: false, RiskLevel: kerneldomain.RiskLow, Reversible: true, Description: "search the web"},
			Run:  func(_ context.Context, p json.RawMessage) (any, error) { return echo(p) },
		},
		"fs_read": {
			Meta: HandlerMeta{Name: "fs_read", Writes: false, RiskLevel: kerneldomain.RiskLow, Reversible: true, Description: "read a file"},
			Run:  func(_ context.Context, p json.RawMessage) (any, error) { return echo(p) },
		},
		"fs_write": {
			Meta: HandlerMeta{Name: "fs_write", Writes: true, RiskLevel: kerneldomain.RiskMedium, Reversible: false, Description: "write a file"},
			Run:  func(_ context.Context, p json.RawMessage) (any, error) { return echo(p) },
		},
		"send_email": {
			Meta: HandlerMeta{Name: "send_email", Writes: true, RiskLevel: kerneldomain.RiskMedium, Reversible: false, Description: "send an email"},
			Run:  func(_ context.Context, p json.RawMessage) (any, error) { return echo(p) },
		},
		"http_request": {
			Meta: HandlerMeta{Name: "http_request", Writes: true, RiskLevel: kerneldomain.RiskMedium, Reversible: false, Description: "issue an outbound HTTP request"},
			Run:  func(_ context.Context, p json.RawMessage) (any, error) { return echo(p) },
		},
		"run_shell": {
			Meta: HandlerMeta{Name: "run_shell", Writes: true, RiskLevel: kerneldomain.RiskHigh, Reversible: false, Description: "run a shell command"},
			Run:  func(_ context.Context, p json.RawMessage) (any, error) { return echo(p) },
		},
	}
}
