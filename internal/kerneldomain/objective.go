package kerneldomain

import "time"

type ObjectiveStatus string

const (
	ObjectiveInProgress ObjectiveStatus = "in_progress"
	ObjectiveCompleted  ObjectiveStatus = "completed"
	ObjectiveFailed     ObjectiveStatus = "failed"
)

type DeliverableType string

const (
	DeliverableList   DeliverableType = "list"
	DeliverableAnswer DeliverableType = "answer"
	DeliverableCode   DeliverableType = "code"
	DeliverableFile   DeliverableType = "file"
	DeliverableNone   DeliverableType = "none"
)

// RequiredDeliverable names the shape of output a cognitive objective
// expects, used to gate tool-truth claim sanitization before output is
// surfaced to the user.
type RequiredDeliverable struct {
	Type        DeliverableType `json:"type"`
	Count       *int            `json:"count,omitempty"`
	Description string          `json:"description"`
	ItemFormat  string          `json:"item_format,omitempty"`
}

func (r RequiredDeliverable) Encode() (string, error) { return encodeV1(r) }

func DecodeRequiredDeliverable(raw string) (RequiredDeliverable, error) {
	var r RequiredDeliverable
	if err := decodeV1(raw, &r); err != nil {
		return RequiredDeliverable{}, err
	}
	return r, nil
}

// ToolEvidence records one real tool call made within an objective,
// used to gate claim sanitization: a claim of having done X must be
// backed by evidence that a tool for X actually ran.
type ToolEvidence struct {
	EvidenceID string
	ToolName   string
	Summary    string
	CreatedAt  time.Time
}

// Turn is one user/assistant exchange recorded under an objective.
type Turn struct {
	TurnID    string
	Role      string // "user" | "assistant"
	Content   string
	CreatedAt time.Time
}

type CognitiveObjective struct {
	ObjectiveID         string
	SessionID           string
	Goal                string
	RequiredDeliverable RequiredDeliverable
	Status              ObjectiveStatus
	CreatedAt           time.Time
	ToolEvidence        []ToolEvidence
	Turns               []Turn
}
