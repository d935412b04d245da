// Package hooks provides the hook interface for moderation events.
package hooks

import (
	"context"
)

// Hooks receives moderation events. Hook errors are logged by the moderator
// and never change an evaluation.
type Hooks interface {
	// OnViolationDetected is called for every matched message, including
	// advisory low severity matches.
	OnViolationDetected(ctx context.Context, e ViolationDetectedEvent) error

	// OnEnforcement is called when an evaluation yields an action other than none.
	OnEnforcement(ctx context.Context, e EnforcementEvent) error
}

// NopHooks is a no-op implementation of Hooks.
type NopHooks struct{}

// OnViolationDetected does nothing.
func (NopHooks) OnViolationDetected(ctx context.Context, e ViolationDetectedEvent) error {
	return nil
}

// OnEnforcement does nothing.
func (NopHooks) OnEnforcement(ctx context.Context, e EnforcementEvent) error {
	return nil
}

var _ Hooks = NopHooks{}

// ChainHooks calls several hooks in order, stopping at the first error.
type ChainHooks []Hooks

// OnViolationDetected calls all hooks in order.
func (ch ChainHooks) OnViolationDetected(ctx context.Context, e ViolationDetectedEvent) error {
	for _, h := range ch {
		if err := h.OnViolationDetected(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// OnEnforcement calls all hooks in order.
func (ch ChainHooks) OnEnforcement(ctx context.Context, e EnforcementEvent) error {
	for _, h := range ch {
		if err := h.OnEnforcement(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// FuncHooks allows using functions as hooks.
type FuncHooks struct {
	OnViolationDetectedFunc func(ctx context.Context, e ViolationDetectedEvent) error
	OnEnforcementFunc       func(ctx context.Context, e EnforcementEvent) error
}

// OnViolationDetected calls the function if set.
func (fh FuncHooks) OnViolationDetected(ctx context.Context, e ViolationDetectedEvent) error {
	if fh.OnViolationDetectedFunc != nil {
		return fh.OnViolationDetectedFunc(ctx, e)
	}
	return nil
}

// OnEnforcement calls the function if set.
func (fh FuncHooks) OnEnforcement(ctx context.Context, e EnforcementEvent) error {
	if fh.OnEnforcementFunc != nil {
		return fh.OnEnforcementFunc(ctx, e)
	}
	return nil
}
