package hooks

import (
	"time"

	"github.com/heibot/chatguard"
)

// ViolationDetectedEvent is emitted when a message matches a rule.
type ViolationDetectedEvent struct {
	UserID string `json:"user_id"`

	Result chatguard.ModerationResult `json:"result"`

	// Counted reports whether the violation was added to the ledger.
	Counted bool `json:"counted"`

	Timestamp time.Time `json:"timestamp"`
}

// EnforcementEvent is emitted when a user's count maps to an action.
type EnforcementEvent struct {
	UserID       string           `json:"user_id"`
	Action       chatguard.Action `json:"action"`
	WarningCount int              `json:"warning_count"`

	// PreviousAction is the action at the previous count.
	PreviousAction chatguard.Action `json:"previous_action"`

	// Result that triggered the enforcement
	Result chatguard.ModerationResult `json:"result"`

	Timestamp time.Time `json:"timestamp"`
}

// Change returns the action transition carried by the event.
func (e EnforcementEvent) Change() ActionChange {
	return ActionChange{From: e.PreviousAction, To: e.Action}
}

// ActionChange represents a change in enforcement action.
type ActionChange struct {
	From chatguard.Action `json:"from"`
	To   chatguard.Action `json:"to"`
}

// IsEscalation returns true if the action became stricter.
func (c ActionChange) IsEscalation() bool {
	return c.To.Rank() > c.From.Rank()
}

// IsDeescalation returns true if the action became more lenient.
func (c ActionChange) IsDeescalation() bool {
	return c.To.Rank() < c.From.Rank()
}
