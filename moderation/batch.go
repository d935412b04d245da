package moderation

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/heibot/chatguard"
)

// EvaluateBatch evaluates messages concurrently, at most Options.Workers at
// a time. Results are in input order. Every message is evaluated even when
// another fails; the first error is returned and the failed message's slot
// holds whatever Evaluate returned for it.
func (m *Moderator) EvaluateBatch(ctx context.Context, messages []Message) ([]*Evaluation, error) {
	results := make([]*Evaluation, len(messages))
	if len(messages) == 0 {
		return results, nil
	}

	var g errgroup.Group
	g.SetLimit(m.opts.Workers)
	for i, msg := range messages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			eval, err := m.Evaluate(ctx, msg.UserID, msg.Text)
			results[i] = eval
			return err
		})
	}
	err := g.Wait()
	return results, err
}

// BatchSummary aggregates the evaluations of a batch.
type BatchSummary struct {
	Total      int `json:"total"`
	Violations int `json:"violations"`
	Blocked    int `json:"blocked"`
	Counted    int `json:"counted"`

	// StrictestAction is the most severe action across the batch.
	StrictestAction chatguard.Action `json:"strictest_action"`
}

// Summarize aggregates evals. Nil entries are counted in Total only.
func Summarize(evals []*Evaluation) BatchSummary {
	s := BatchSummary{Total: len(evals), StrictestAction: chatguard.ActionNone}
	for _, e := range evals {
		if e == nil {
			continue
		}
		if e.Result.IsViolation {
			s.Violations++
		}
		if e.Result.Blocking() {
			s.Blocked++
		}
		if e.Counted {
			s.Counted++
		}
		if e.Action.Rank() > s.StrictestAction.Rank() {
			s.StrictestAction = e.Action
		}
	}
	return s
}
