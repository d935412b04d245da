// Package escalation maps a user's cumulative violation count to an
// enforcement action.
package escalation

import (
	"fmt"

	"github.com/heibot/chatguard"
)

// Policy holds the count at which each action starts to apply.
type Policy struct {
	WarningAt      int `yaml:"warning_at" json:"warning_at"`
	TempBanAt      int `yaml:"temp_ban_at" json:"temp_ban_at"`
	PermanentBanAt int `yaml:"permanent_ban_at" json:"permanent_ban_at"`
}

// DefaultPolicy returns warning at 1, temp_ban at 3 and permanent_ban at 5.
func DefaultPolicy() Policy {
	return Policy{
		WarningAt:      chatguard.DefaultWarningAt,
		TempBanAt:      chatguard.DefaultTempBanAt,
		PermanentBanAt: chatguard.DefaultPermanentBanAt,
	}
}

// Validate requires 1 <= WarningAt <= TempBanAt <= PermanentBanAt.
func (p Policy) Validate() error {
	if p.WarningAt < 1 || p.WarningAt > p.TempBanAt || p.TempBanAt > p.PermanentBanAt {
		return fmt.Errorf("%w: thresholds %d/%d/%d must satisfy 1 <= warning <= temp_ban <= permanent_ban",
			chatguard.ErrInvalidPolicy, p.WarningAt, p.TempBanAt, p.PermanentBanAt)
	}
	return nil
}

// Decide returns the action for count. It is total and monotonic: zero and
// negative counts map to ActionNone.
func (p Policy) Decide(count int) chatguard.Action {
	switch {
	case count >= p.PermanentBanAt:
		return chatguard.ActionPermanentBan
	case count >= p.TempBanAt:
		return chatguard.ActionTempBan
	case count >= p.WarningAt:
		return chatguard.ActionWarning
	default:
		return chatguard.ActionNone
	}
}

var defaultPolicy = DefaultPolicy()

// Decide applies the default policy.
func Decide(count int) chatguard.Action {
	return defaultPolicy.Decide(count)
}
