// Package moderation is the entry point of the engine. A Moderator classifies
// a message, redacts it, counts the violation against the sender and decides
// the enforcement action.
package moderation

import (
	"log/slog"
	"time"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/escalation"
	"github.com/heibot/chatguard/hooks"
	"github.com/heibot/chatguard/ledger"
	"github.com/heibot/chatguard/notice"
	"github.com/heibot/chatguard/redact"
	"github.com/heibot/chatguard/rules"
)

// Options configures a Moderator.
type Options struct {
	// Ledger stores per-user violation counts (required).
	Ledger ledger.Ledger

	// Rules is the detection catalogue. Nil uses rules.Default().
	Rules *rules.Set

	// Policy maps counts to actions. The zero value uses escalation.DefaultPolicy().
	Policy escalation.Policy

	// Redactor masks offending spans. Nil uses redact.New().
	Redactor *redact.Redactor

	// Hooks receives violation and enforcement events.
	Hooks hooks.Hooks

	Logger *slog.Logger

	// MaskAllCategories also masks blocking spans of categories other than
	// the primary one.
	MaskAllCategories bool

	// Lang selects the warning message table.
	Lang string

	// Workers bounds EvaluateBatch concurrency.
	Workers int

	// Clock stamps results. Nil uses time.Now.
	Clock func() time.Time
}

// DefaultOptions returns default options. Ledger still has to be set.
func DefaultOptions() Options {
	return Options{
		Policy:  escalation.DefaultPolicy(),
		Hooks:   hooks.NopHooks{},
		Lang:    notice.DefaultLang,
		Workers: chatguard.DefaultBatchWorkers,
	}
}

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	Result chatguard.ModerationResult `json:"result"`

	// Action is ActionNone unless the message was a blocking violation
	// that was counted.
	Action chatguard.Action `json:"action"`

	// WarningCount is the sender's count after this message. Messages that
	// were not counted leave it zero; the ledger is not consulted for them.
	WarningCount int `json:"warning_count"`

	// Counted reports whether the message was added to the sender's ledger.
	Counted bool `json:"counted"`

	// WarningMessage is shown to the sender of a blocking violation.
	WarningMessage string `json:"warning_message,omitempty"`
}

// Message is one input to EvaluateBatch.
type Message struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}
