package chatguard

import (
	"time"
)

// Span is a matched region of the original text, in byte offsets.
type Span struct {
	Start int    `json:"start"` // Inclusive byte offset
	End   int    `json:"end"`   // Exclusive byte offset
	Text  string `json:"text"`  // Matched substring
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// ModerationResult is the immutable outcome of evaluating one message.
type ModerationResult struct {
	ID            string    `json:"id"`              // Evaluation ID for audit trails
	OriginalText  string    `json:"original_text"`   // Text as submitted
	FilteredText  string    `json:"filtered_text"`   // Text safe to persist/deliver
	IsViolation   bool      `json:"is_violation"`    // Whether any rule matched
	Category      Category  `json:"category"`        // Primary category, empty when clean
	Severity      Severity  `json:"severity"`        // SeverityNone when clean
	MatchedRuleID string    `json:"matched_rule_id"` // Winning rule, empty when clean
	Spans         []Span    `json:"spans,omitempty"` // Flagged spans of the primary category
	ContentHash   string    `json:"content_hash"`    // SHA256 of OriginalText
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// Blocking reports whether the message must not be delivered as written.
func (r ModerationResult) Blocking() bool {
	return r.IsViolation && r.Severity.Blocking()
}

// Redacted reports whether the filtered text differs from the original.
func (r ModerationResult) Redacted() bool {
	return r.FilteredText != r.OriginalText
}

// UserViolationRecord is the per-user ledger entry.
type UserViolationRecord struct {
	UserID       string      `json:"user_id" db:"user_id"`
	WarningCount int         `json:"warning_count" db:"warning_count"`
	History      []time.Time `json:"history"` // One timestamp per counted violation
	CreatedAt    int64       `json:"created_at" db:"created_at"`
	UpdatedAt    int64       `json:"updated_at" db:"updated_at"`
}
