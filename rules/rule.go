// Package rules declares the ordered catalogue of detection rules used to
// classify chat messages.
package rules

import (
	"regexp"

	"github.com/heibot/chatguard"
)

// Matcher reports the spans of text that a rule matches.
// Implementations must be stateless so a single matcher can serve
// concurrent callers.
type Matcher interface {
	Match(text string) []chatguard.Span
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(text string) []chatguard.Span

// Match calls f(text).
func (f MatcherFunc) Match(text string) []chatguard.Span {
	return f(text)
}

// Rule is a single detection rule bound to a category and severity.
type Rule struct {
	ID          string                 `json:"id"`
	Category    chatguard.Category     `json:"category"`
	Severity    chatguard.Severity     `json:"severity"`
	Mask        chatguard.MaskStrategy `json:"mask"`
	Description string                 `json:"description,omitempty"`
	Matcher     Matcher                `json:"-"`
}

// Match runs the rule's matcher. A nil matcher never matches.
func (r Rule) Match(text string) []chatguard.Span {
	if r.Matcher == nil {
		return nil
	}
	return r.Matcher.Match(text)
}

// validate checks the rule in isolation.
func (r Rule) validate() error {
	if r.ID == "" {
		return chatguard.NewRuleError("", "id", "is required")
	}
	if !r.Category.Valid() {
		return chatguard.NewRuleError(r.ID, "category", "unknown category "+string(r.Category))
	}
	if r.Severity < chatguard.SeverityLow || r.Severity > chatguard.SeverityCritical {
		return chatguard.NewRuleError(r.ID, "severity", "must be between low and critical")
	}
	if !r.Mask.Valid() {
		return chatguard.NewRuleError(r.ID, "mask", "unknown mask strategy "+string(r.Mask))
	}
	if r.Matcher == nil {
		return chatguard.NewRuleError(r.ID, "matcher", "is required")
	}
	if r.Category == chatguard.CategoryNumeric && r.Mask != chatguard.MaskNone {
		return chatguard.NewRuleError(r.ID, "mask", "suspicious_numeric rules are advisory and must use none")
	}
	if r.Mask == chatguard.MaskNone && r.Severity.Blocking() {
		return chatguard.NewRuleError(r.ID, "mask", "blocking rules must rewrite their spans")
	}
	return nil
}

// PatternOption configures a regex matcher.
type PatternOption func(*regexMatcher)

// Group takes the reported span from capture group n instead of the whole match.
func Group(n int) PatternOption {
	return func(m *regexMatcher) {
		m.group = n
	}
}

// Reject drops matches for which fn returns true. fn sees the full text so it
// can inspect the surrounding context.
func Reject(fn func(text string, span chatguard.Span) bool) PatternOption {
	return func(m *regexMatcher) {
		m.rejects = append(m.rejects, fn)
	}
}

// regexMatcher is immutable after construction; FindAllStringSubmatchIndex
// keeps no scan position between calls.
type regexMatcher struct {
	re      *regexp.Regexp
	group   int
	rejects []func(text string, span chatguard.Span) bool
}

// Pattern compiles expr into a Matcher. It panics on an invalid expression,
// so it is meant for package-level catalogue declarations.
func Pattern(expr string, opts ...PatternOption) Matcher {
	m, err := CompilePattern(expr, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// CompilePattern compiles expr into a Matcher.
func CompilePattern(expr string, opts ...PatternOption) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	m := &regexMatcher{re: re}
	for _, opt := range opts {
		opt(m)
	}
	if m.group < 0 || m.group > re.NumSubexp() {
		return nil, chatguard.NewRuleError("", "group", "capture group out of range for "+expr)
	}
	return m, nil
}

func (m *regexMatcher) Match(text string) []chatguard.Span {
	if text == "" {
		return nil
	}

	var spans []chatguard.Span
	for _, loc := range m.re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2*m.group], loc[2*m.group+1]
		if start < 0 || end <= start {
			continue
		}
		span := chatguard.Span{Start: start, End: end, Text: text[start:end]}
		if m.rejected(text, span) {
			continue
		}
		spans = append(spans, span)
	}
	return spans
}

func (m *regexMatcher) rejected(text string, span chatguard.Span) bool {
	for _, fn := range m.rejects {
		if fn(text, span) {
			return true
		}
	}
	return false
}

// String returns the source expression.
func (m *regexMatcher) String() string {
	return m.re.String()
}
