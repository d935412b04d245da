package utils

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/heibot/chatguard"
)

// RetryConfig configures exponential backoff.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter is the relative spread applied to each delay, 0.1 means ±10%.
	Jitter float64

	// RetryIf reports whether err is worth another attempt.
	// Defaults to chatguard.IsRetryable.
	RetryIf func(error) bool

	// OnRetry runs before each retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig suits ledger calls made on the request path.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       0.1,
		RetryIf:      chatguard.IsRetryable,
	}
}

// Retryer runs functions with retry and exponential backoff.
type Retryer struct {
	config RetryConfig
}

// NewRetryer fills unset fields from DefaultRetryConfig.
func NewRetryer(config RetryConfig) *Retryer {
	def := DefaultRetryConfig()
	if config.RetryIf == nil {
		config.RetryIf = def.RetryIf
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.Multiplier <= 0 {
		config.Multiplier = def.Multiplier
	}
	return &Retryer{config: config}
}

// Do runs fn until it succeeds, returns a non-retryable error, the retries
// run out, or ctx is done.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	_, err := DoWithResult(ctx, r, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		val, err := fn()
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt >= r.config.MaxRetries || !r.config.RetryIf(err) {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * r.config.Jitter
	}
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	return time.Duration(d)
}
