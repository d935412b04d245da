package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/classify"
	"github.com/heibot/chatguard/escalation"
	"github.com/heibot/chatguard/hooks"
	"github.com/heibot/chatguard/ledger"
	"github.com/heibot/chatguard/notice"
	"github.com/heibot/chatguard/redact"
	"github.com/heibot/chatguard/rules"
	"github.com/heibot/chatguard/utils"
)

// Moderator is safe for concurrent use.
type Moderator struct {
	ledger     ledger.Ledger
	classifier atomic.Pointer[classify.Classifier]
	policy     escalation.Policy
	redactor   *redact.Redactor
	hooks      hooks.Hooks
	logger     *slog.Logger
	opts       Options
}

// New creates a Moderator.
func New(opts Options) (*Moderator, error) {
	if opts.Ledger == nil {
		return nil, chatguard.ErrLedgerNotConfigured
	}

	def := DefaultOptions()
	if opts.Policy == (escalation.Policy{}) {
		opts.Policy = def.Policy
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Redactor == nil {
		opts.Redactor = redact.New()
	}
	if opts.Hooks == nil {
		opts.Hooks = def.Hooks
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Lang == "" {
		opts.Lang = def.Lang
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	m := &Moderator{
		ledger:   opts.Ledger,
		policy:   opts.Policy,
		redactor: opts.Redactor,
		hooks:    opts.Hooks,
		logger:   opts.Logger.With("component", "moderation"),
		opts:     opts,
	}
	m.classifier.Store(classify.New(opts.Rules))
	return m, nil
}

// Rules returns the rule set used by new evaluations.
func (m *Moderator) Rules() *rules.Set {
	return m.classifier.Load().Rules()
}

// ReloadRules replaces the rule set. Evaluations in flight finish with the
// previous set.
func (m *Moderator) ReloadRules(set *rules.Set) error {
	if set == nil || set.Len() == 0 {
		return chatguard.ErrEmptyRuleSet
	}
	m.classifier.Store(classify.New(set))
	m.logger.Info("rule set reloaded", "rules", set.Len())
	return nil
}

// Evaluate moderates one message from userID.
//
// Clean and low-severity messages never touch the ledger. A blocking
// violation is redacted and counted, and the action follows from the new
// count. When the ledger fails, the returned Evaluation still carries the
// classification and redaction with ActionNone, along with an error matching
// chatguard.ErrLedgerUnavailable.
func (m *Moderator) Evaluate(ctx context.Context, userID, text string) (*Evaluation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, chatguard.NewValidationError("user_id", "is required")
	}

	eval := &Evaluation{Result: m.Preview(text), Action: chatguard.ActionNone}
	result := &eval.Result

	m.logger.DebugContext(ctx, "message evaluated",
		"user_id", userID,
		"result_id", result.ID,
		"content_hash", utils.TruncateHash(result.ContentHash, 12),
		"violation", result.IsViolation,
		"rule_id", result.MatchedRuleID,
		"category", result.Category,
		"severity", result.Severity,
	)

	if !result.Blocking() {
		if result.IsViolation {
			m.fireViolationDetected(ctx, userID, eval)
		}
		return eval, nil
	}

	eval.WarningMessage = notice.ForResult(*result, m.opts.Lang)

	count, err := m.ledger.IncrementAndGet(ctx, userID)
	if err != nil {
		if !chatguard.IsLedgerError(err) {
			err = chatguard.NewLedgerError("increment", "ledger", err)
		}
		m.logger.WarnContext(ctx, "violation not counted",
			"user_id", userID,
			"result_id", result.ID,
			"category", result.Category,
			"error", err,
		)
		m.fireViolationDetected(ctx, userID, eval)
		return eval, fmt.Errorf("failed to count violation: %w", err)
	}

	eval.Counted = true
	eval.WarningCount = count
	eval.Action = m.policy.Decide(count)

	m.fireViolationDetected(ctx, userID, eval)
	if eval.Action != chatguard.ActionNone {
		m.fireEnforcement(ctx, userID, eval)
	}
	return eval, nil
}

// Preview classifies and redacts text without touching the ledger.
func (m *Moderator) Preview(text string) chatguard.ModerationResult {
	c := m.classifier.Load()
	cls := c.Classify(text)

	result := chatguard.ModerationResult{
		ID:           uuid.NewString(),
		OriginalText: text,
		FilteredText: text,
		ContentHash:  utils.HashText(text),
		EvaluatedAt:  m.opts.Clock(),
	}
	if !cls.Matched() {
		return result
	}

	result.IsViolation = true
	result.Category = cls.Category()
	result.Severity = cls.Severity()
	result.MatchedRuleID = cls.Rule.ID
	result.Spans = cls.Spans

	if !cls.Severity().Blocking() {
		return result
	}

	if m.opts.MaskAllCategories {
		result.FilteredText = m.redactor.RedactHits(text, blockingHits(cls, c.ScanAll(text)))
	} else {
		result.FilteredText = m.redactor.Redact(text, cls.Rule.Mask, cls.Spans)
	}
	return result
}

// IsSafeMessage reports whether text can be delivered as written, that is,
// it has no violation of medium severity or above.
func (m *Moderator) IsSafeMessage(text string) bool {
	return redact.IsSafe(m.classifier.Load().Classify(text).Severity())
}

// Violations returns userID's ledger record. Ledgers without history yield
// a record holding only the count.
func (m *Moderator) Violations(ctx context.Context, userID string) (*chatguard.UserViolationRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, chatguard.NewValidationError("user_id", "is required")
	}

	if rec, ok := m.ledger.(ledger.Recorder); ok {
		r, err := rec.Record(ctx, userID)
		if err == nil || !errors.Is(err, chatguard.ErrNotSupported) {
			return r, err
		}
	}

	count, err := m.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, chatguard.ErrUserNotFound
	}
	return &chatguard.UserViolationRecord{UserID: userID, WarningCount: count}, nil
}

// ResetViolations clears userID's record. It is an administrative operation
// and returns chatguard.ErrNotSupported when the ledger cannot reset.
func (m *Moderator) ResetViolations(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return chatguard.NewValidationError("user_id", "is required")
	}
	res, ok := m.ledger.(ledger.Resetter)
	if !ok {
		return chatguard.ErrNotSupported
	}
	if err := res.Reset(ctx, userID); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "violations reset", "user_id", userID)
	return nil
}

// Decide returns the action the configured policy assigns to count.
func (m *Moderator) Decide(count int) chatguard.Action {
	return m.policy.Decide(count)
}

// Ledger returns the ledger in use.
func (m *Moderator) Ledger() ledger.Ledger {
	return m.ledger
}

// blockingHits puts the primary classification first so its spans win
// overlaps, followed by the other blocking hits.
func blockingHits(primary classify.Classification, all []classify.Hit) []classify.Hit {
	hits := make([]classify.Hit, 0, len(all)+1)
	hits = append(hits, classify.Hit{Rule: primary.Rule, Spans: primary.Spans})
	for _, h := range all {
		if h.Rule.ID == primary.Rule.ID || !h.Rule.Severity.Blocking() {
			continue
		}
		hits = append(hits, h)
	}
	return hits
}

func (m *Moderator) fireViolationDetected(ctx context.Context, userID string, eval *Evaluation) {
	event := hooks.ViolationDetectedEvent{
		UserID:    userID,
		Result:    eval.Result,
		Counted:   eval.Counted,
		Timestamp: m.opts.Clock(),
	}
	if err := m.hooks.OnViolationDetected(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "violation hook failed", "user_id", userID, "result_id", eval.Result.ID, "error", err)
	}
}

func (m *Moderator) fireEnforcement(ctx context.Context, userID string, eval *Evaluation) {
	event := hooks.EnforcementEvent{
		UserID:         userID,
		Action:         eval.Action,
		WarningCount:   eval.WarningCount,
		PreviousAction: m.policy.Decide(eval.WarningCount - 1),
		Result:         eval.Result,
		Timestamp:      m.opts.Clock(),
	}
	if err := m.hooks.OnEnforcement(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "enforcement hook failed", "user_id", userID, "action", eval.Action, "error", err)
	}
}
