// Package ledger stores each user's cumulative count of counted violations.
//
// Implementations must make IncrementAndGet atomic per user: concurrent
// increments for the same user never lose an update.
package ledger

import (
	"context"

	"github.com/heibot/chatguard"
)

// Ledger is the violation counter consulted by the moderator.
type Ledger interface {
	// IncrementAndGet adds one violation for userID and returns the new count.
	IncrementAndGet(ctx context.Context, userID string) (int, error)

	// Get returns the current count. Unknown users have a count of zero.
	Get(ctx context.Context, userID string) (int, error)
}

// Recorder is implemented by ledgers that keep per-violation history.
type Recorder interface {
	// Record returns the user's record. Unknown users yield chatguard.ErrUserNotFound.
	Record(ctx context.Context, userID string) (*chatguard.UserViolationRecord, error)
}

// Resetter is implemented by ledgers that support clearing a user's record.
// It is an administrative operation and never called by the moderator.
type Resetter interface {
	Reset(ctx context.Context, userID string) error
}

// Closer is implemented by ledgers holding external resources.
type Closer interface {
	Close() error
}
