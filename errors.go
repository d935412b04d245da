package chatguard

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Common errors
var (
	ErrLedgerNotConfigured = errors.New("chatguard: ledger not configured")
	ErrLedgerUnavailable   = errors.New("chatguard: ledger unavailable")
	ErrUserNotFound        = errors.New("chatguard: user not found")
	ErrInvalidRule         = errors.New("chatguard: invalid rule")
	ErrDuplicateRule       = errors.New("chatguard: duplicate rule id")
	ErrEmptyRuleSet        = errors.New("chatguard: rule set is empty")
	ErrInvalidPolicy       = errors.New("chatguard: invalid escalation policy")
	ErrInvalidConfig       = errors.New("chatguard: invalid configuration")
	ErrTimeout             = errors.New("chatguard: operation timeout")
	ErrNotSupported        = errors.New("chatguard: operation not supported by ledger")

	// Network errors
	ErrNetworkUnreachable = errors.New("chatguard: network unreachable")
	ErrConnectionRefused  = errors.New("chatguard: connection refused")
	ErrDNSResolution      = errors.New("chatguard: DNS resolution failed")
)

// RuleError reports a defective detection rule found at registration time.
type RuleError struct {
	RuleID  string // Offending rule, may be empty
	Field   string // Field that failed validation
	Message string
}

func (e *RuleError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("chatguard: invalid rule: %s %s", e.Field, e.Message)
	}
	return fmt.Sprintf("chatguard: invalid rule %q: %s %s", e.RuleID, e.Field, e.Message)
}

func (e *RuleError) Unwrap() error {
	return ErrInvalidRule
}

// NewRuleError creates a new rule error.
func NewRuleError(ruleID, field, message string) *RuleError {
	return &RuleError{
		RuleID:  ruleID,
		Field:   field,
		Message: message,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string // Field that failed validation
	Message string // Validation error message
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chatguard: validation error on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// LedgerError represents a failure of the violation ledger backend.
type LedgerError struct {
	Operation string // increment, get, record, reset
	Backend   string // memory, sql, redis
	Err       error  // Underlying error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("chatguard: ledger %s error during %s: %v", e.Backend, e.Operation, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is makes every LedgerError match ErrLedgerUnavailable.
func (e *LedgerError) Is(target error) bool {
	return target == ErrLedgerUnavailable
}

// NewLedgerError creates a new ledger error.
func NewLedgerError(operation, backend string, err error) *LedgerError {
	return &LedgerError{
		Operation: operation,
		Backend:   backend,
		Err:       err,
	}
}

// IsLedgerError checks if an error is a ledger error.
func IsLedgerError(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRuleError checks if an error is a rule error.
func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetworkUnreachable) ||
		errors.Is(err, ErrConnectionRefused) {
		return true
	}

	// Rule and validation defects never heal on retry
	if IsRuleError(err) || IsValidationError(err) {
		return false
	}

	return IsNetworkError(err)
}

// IsNetworkError checks if an error is a network-related error.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNetworkUnreachable) || errors.Is(err, ErrConnectionRefused) ||
		errors.Is(err, ErrDNSResolution) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"i/o timeout",
		"connection timed out",
		"broken pipe",
		"dial tcp",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// WrapNetworkError wraps a network error with appropriate sentinel error.
func WrapNetworkError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") {
		return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}
	if strings.Contains(msg, "no such host") || strings.Contains(msg, "dns") {
		return fmt.Errorf("%w: %v", ErrDNSResolution, err)
	}
	if strings.Contains(msg, "network is unreachable") {
		return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return err
}
