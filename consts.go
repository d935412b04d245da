// Package chatguard provides a deterministic anti-circumvention moderation
// engine for marketplace chat: it detects contact details, off-platform deal
// solicitation, abusive language and suspicious numbers, redacts the offending
// spans and escalates repeat offenders from warnings to bans.
package chatguard

import (
	"encoding/json"
	"fmt"
)

// Category represents the threat category a rule detects.
type Category string

const (
	CategoryPhone       Category = "contact_phone"
	CategoryEmail       Category = "contact_email"
	CategoryMessenger   Category = "contact_messenger"
	CategoryFinancial   Category = "financial_account"
	CategoryOffPlatform Category = "offplatform_solicitation"
	CategoryOffensive   Category = "offensive_language"
	CategoryNumeric     Category = "suspicious_numeric"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryPhone,
	CategoryEmail,
	CategoryMessenger,
	CategoryFinancial,
	CategoryOffPlatform,
	CategoryOffensive,
	CategoryNumeric,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity represents how serious a detected violation is.
type Severity int

const (
	SeverityNone Severity = iota // Clean result
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity parses the string form produced by String.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "none", "":
		return SeverityNone, nil
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityNone, fmt.Errorf("chatguard: unknown severity %q", s)
}

// Blocking reports whether messages at this severity are blocked and counted.
// Low severity is advisory only.
func (s Severity) Blocking() bool {
	return s >= SeverityMedium
}

// MarshalJSON encodes the severity by name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaskStrategy defines how a matched span is rewritten.
type MaskStrategy string

const (
	MaskFixedToken    MaskStrategy = "fixed_token"    // Replace with a placeholder
	MaskPartialReveal MaskStrategy = "partial_reveal" // Keep a bounded prefix/suffix
	MaskNone          MaskStrategy = "none"           // Flag only, never rewrite
)

// Valid reports whether m is a known mask strategy.
func (m MaskStrategy) Valid() bool {
	switch m {
	case MaskFixedToken, MaskPartialReveal, MaskNone:
		return true
	}
	return false
}

// Action is the enforcement action recommended for a user.
type Action string

const (
	ActionNone         Action = "none"
	ActionWarning      Action = "warning"
	ActionTempBan      Action = "temp_ban"
	ActionPermanentBan Action = "permanent_ban"
)

// Rank orders actions by severity: none < warning < temp_ban < permanent_ban.
func (a Action) Rank() int {
	switch a {
	case ActionWarning:
		return 1
	case ActionTempBan:
		return 2
	case ActionPermanentBan:
		return 3
	default:
		return 0
	}
}

// Default configuration values
const (
	DefaultPlaceholder    = "***"
	DefaultRevealPrefix   = 2
	DefaultRevealSuffix   = 2
	DefaultWarningAt      = 1
	DefaultTempBanAt      = 3
	DefaultPermanentBanAt = 5
	DefaultBatchWorkers   = 8
)
