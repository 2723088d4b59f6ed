// Package policy resolves per-action risk mode and evaluates capability
// scopes against it, per spec.md §4.3. Grounded on the teacher's
// resolution-order pattern in apps/ReleaseParty/backend (most-specific
// row wins, falling back to a wildcard, falling back to a static
// default) as seen in its environment/feature-flag lookups.
package policy

import (
	"context"
	"database/sql"
	"errors"

	"clawos/internal/kerneldomain"
	"clawos/internal/store"
)

// toolMeta is the static classification of a known tool name. Unknown
// tools default to writes=true, risk=MEDIUM: the conservative choice,
// since an unrecognized tool cannot be assumed side-effect free.
type toolMeta struct {
	writes bool
	risk   kerneldomain.RiskLevel
}

var knownTools = map[string]toolMeta{
	"web_search":   {writes: false, risk: kerneldomain.RiskLow},
	"fs_read":      {writes: false, risk: kerneldomain.RiskLow},
	"fs_write":     {writes: true, risk: kerneldomain.RiskMedium},
	"send_email":   {writes: true, risk: kerneldomain.RiskMedium},
	"http_request": {writes: true, risk: kerneldomain.RiskMedium},
	"run_shell":    {writes: true, risk: kerneldomain.RiskHigh},
}

func classify(tool string) toolMeta {
	if m, ok := knownTools[tool]; ok {
		return m
	}
	return toolMeta{writes: true, risk: kerneldomain.RiskMedium}
}

type Service struct {
	store *store.Store
}

func New(st *store.Store) *Service { return &Service{store: st} }

// ResolveMode implements spec.md §4.3's three-level resolution: exact
// (action_type, workspace) row, then (action_type, "*"), then a static
// default keyed on whether the action type writes.
func (s *Service) ResolveMode(ctx context.Context, actionType, workspaceID string, writes bool) (kerneldomain.PolicyMode, error) {
	p, err := s.store.ResolveRiskPolicy(ctx, actionType, workspaceID)
	if err == nil {
		return p.Mode, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if writes {
		return kerneldomain.ModeAsk, nil
	}
	return kerneldomain.ModeAuto, nil
}

// ScopeEvaluation is the result of evaluating a capability scope
// against the resolved mode of every tool it requests.
type ScopeEvaluation struct {
	Blocked          bool
	BlockedTool      string
	ApprovalRequired bool
	RiskLevel        kerneldomain.RiskLevel
}

// EvaluateScope walks scope.AllowedTools in order; the first tool whose
// resolved mode is "block" short-circuits the whole scope as blocked.
// Otherwise, if any tool resolves to "ask", approval is required and
// the reported risk level is the highest among the ask-gated tools. A
// critical-criticality contract escalates any tool that would
// otherwise auto-run to ask, per spec.md §4's criticality heuristic —
// it only ever tightens a mode, never loosens a block or an existing
// ask.
func (s *Service) EvaluateScope(ctx context.Context, workspaceID string, scope kerneldomain.Scope, criticality kerneldomain.Criticality) (ScopeEvaluation, error) {
	eval := ScopeEvaluation{RiskLevel: kerneldomain.RiskLow}
	highest := kerneldomain.RiskLow
	anyAsk := false

	for _, tool := range scope.AllowedTools {
		meta := classify(tool)
		mode, err := s.ResolveMode(ctx, tool, workspaceID, meta.writes)
		if err != nil {
			return ScopeEvaluation{}, err
		}
		if mode == kerneldomain.ModeAuto && criticality == kerneldomain.CriticalityCritical {
			mode = kerneldomain.ModeAsk
		}
		switch mode {
		case kerneldomain.ModeBlock:
			return ScopeEvaluation{Blocked: true, BlockedTool: tool, RiskLevel: meta.risk}, nil
		case kerneldomain.ModeAsk:
			anyAsk = true
			if riskRank(meta.risk) > riskRank(highest) {
				highest = meta.risk
			}
		}
	}

	if anyAsk {
		eval.ApprovalRequired = true
		eval.RiskLevel = highest
	}
	return eval, nil
}

func riskRank(r kerneldomain.RiskLevel) int {
	switch r {
	case kerneldomain.RiskHigh:
		return 2
	case kerneldomain.RiskMedium:
		return 1
	default:
		return 0
	}
}
