package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/utils"
)

// ResilientConfig configures the resilient ledger wrapper.
type ResilientConfig struct {
	// Backend names the wrapped ledger in logs and errors.
	Backend string

	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// RetryWrites also retries IncrementAndGet. A write whose
	// acknowledgement was lost may then be counted twice, so it is off by
	// default.
	RetryWrites bool

	Logger *slog.Logger
}

// DefaultResilientConfig returns the configuration used when none is given.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		Backend:      "ledger",
		MaxRetries:   2,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
	}
}

// Resilient wraps a Ledger with timing logs, retries and error wrapping.
// Every failure it returns is a *chatguard.LedgerError.
type Resilient struct {
	next    Ledger
	config  ResilientConfig
	retryer *utils.Retryer
	logger  *slog.Logger
}

// NewResilient wraps next.
func NewResilient(next Ledger, config ResilientConfig) *Resilient {
	def := DefaultResilientConfig()
	if config.Backend == "" {
		config.Backend = def.Backend
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ledger", "backend", config.Backend)

	return &Resilient{
		next:   next,
		config: config,
		retryer: utils.NewRetryer(utils.RetryConfig{
			MaxRetries:   config.MaxRetries,
			InitialDelay: config.InitialDelay,
			MaxDelay:     config.MaxDelay,
			Multiplier:   2.0,
			Jitter:       0.1,
		}),
		logger: logger,
	}
}

// Unwrap returns the wrapped ledger.
func (r *Resilient) Unwrap() Ledger {
	return r.next
}

// IncrementAndGet implements Ledger.
func (r *Resilient) IncrementAndGet(ctx context.Context, userID string) (int, error) {
	if !r.config.RetryWrites {
		return logged(ctx, r, "increment", userID, nil, func() (int, error) {
			return r.next.IncrementAndGet(ctx, userID)
		})
	}
	return r.retried(ctx, "increment", userID, func() (int, error) {
		return r.next.IncrementAndGet(ctx, userID)
	})
}

// Get implements Ledger.
func (r *Resilient) Get(ctx context.Context, userID string) (int, error) {
	return r.retried(ctx, "get", userID, func() (int, error) {
		return r.next.Get(ctx, userID)
	})
}

// Record implements Recorder when the wrapped ledger does, and returns
// chatguard.ErrNotSupported otherwise.
func (r *Resilient) Record(ctx context.Context, userID string) (*chatguard.UserViolationRecord, error) {
	rec, ok := r.next.(Recorder)
	if !ok {
		return nil, fmt.Errorf("%w: %s ledger keeps no history", chatguard.ErrNotSupported, r.config.Backend)
	}
	attempts := 0
	return logged(ctx, r, "record", userID, &attempts, func() (*chatguard.UserViolationRecord, error) {
		return utils.DoWithResult(ctx, r.retryer, func() (*chatguard.UserViolationRecord, error) {
			attempts++
			return rec.Record(ctx, userID)
		})
	})
}

// Reset implements Resetter when the wrapped ledger does.
func (r *Resilient) Reset(ctx context.Context, userID string) error {
	res, ok := r.next.(Resetter)
	if !ok {
		return fmt.Errorf("%w: %s ledger does not support reset", chatguard.ErrNotSupported, r.config.Backend)
	}
	_, err := logged(ctx, r, "reset", userID, nil, func() (struct{}, error) {
		return struct{}{}, res.Reset(ctx, userID)
	})
	return err
}

// Close closes the wrapped ledger if it holds resources.
func (r *Resilient) Close() error {
	if c, ok := r.next.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (r *Resilient) retried(ctx context.Context, op, userID string, fn func() (int, error)) (int, error) {
	attempts := 0
	return logged(ctx, r, op, userID, &attempts, func() (int, error) {
		return utils.DoWithResult(ctx, r.retryer, func() (int, error) {
			attempts++
			return fn()
		})
	})
}

// logged times fn and logs its outcome. ErrUserNotFound passes through
// unwrapped since it is an answer, not a failure.
func logged[T any](ctx context.Context, r *Resilient, op, userID string, attempts *int, fn func() (T, error)) (T, error) {
	start := time.Now()
	val, err := fn()
	attrs := []any{
		"operation", op,
		"user_id", userID,
		"duration", time.Since(start),
	}
	if attempts != nil && *attempts > 1 {
		attrs = append(attrs, "retry_count", *attempts-1)
	}

	if err == nil || errors.Is(err, chatguard.ErrUserNotFound) {
		r.logger.DebugContext(ctx, "ledger call", attrs...)
		return val, err
	}

	r.logger.WarnContext(ctx, "ledger call failed", append(attrs, "error", err)...)
	var zero T
	return zero, r.wrap(op, err)
}

func (r *Resilient) wrap(op string, err error) error {
	var le *chatguard.LedgerError
	if errors.As(err, &le) {
		return err
	}
	return chatguard.NewLedgerError(op, r.config.Backend, chatguard.WrapNetworkError(err))
}

var (
	_ Ledger   = (*Resilient)(nil)
	_ Recorder = (*Resilient)(nil)
	_ Resetter = (*Resilient)(nil)
)
