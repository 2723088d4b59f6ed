package kerneldomain

import "time"

type TaskStatus string

const (
	TaskQueued         TaskStatus = "queued"
	TaskRunning        TaskStatus = "running"
	TaskBlocked        TaskStatus = "blocked"
	TaskNeedsApproval  TaskStatus = "needs_approval"
	TaskFailed         TaskStatus = "failed"
	TaskSucceeded      TaskStatus = "succeeded"
)

// Criticality is a supplemental, optional field on Contract (recovered
// from the nearest corpus analogue to a delegation framework). It feeds
// the policy engine's risk heuristic alongside scope-based evaluation;
// it never loosens what the scope alone already requires.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// AcceptanceCheck is one entry of a contract's acceptance_checks array.
// Supported types: "min_artifacts" (uses Count) and
// "subagents_finished" (ignores Count).
type AcceptanceCheck struct {
	Type  string `json:"type"`
	Count int    `json:"count,omitempty"`
}

// Contract is the task's contract-first definition.
type Contract struct {
	Objective        string            `json:"objective"`
	Scope            Scope             `json:"scope"`
	Deliverables     []string          `json:"deliverables"`
	AcceptanceChecks []AcceptanceCheck `json:"acceptance_checks"`
	Criticality      Criticality       `json:"criticality,omitempty"`
}

func (c Contract) Encode() (string, error) { return encodeV1(c) }

func DecodeContract(raw string) (Contract, error) {
	var c Contract
	if err := decodeV1(raw, &c); err != nil {
		return Contract{}, err
	}
	if c.Criticality == "" {
		c.Criticality = CriticalityMedium
	}
	return c, nil
}

type Task struct {
	TaskID         string
	WorkspaceID    string
	CreatedByAgent string
	Title          string
	Intent         string
	Contract       Contract
	Plan           string
	Status         TaskStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
