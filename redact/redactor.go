// Package redact rewrites flagged spans of a message.
package redact

import (
	"strings"
	"unicode/utf8"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/classify"
)

// Option configures a Redactor.
type Option func(*Redactor)

// WithPlaceholder sets the fixed token written over masked spans.
func WithPlaceholder(p string) Option {
	return func(r *Redactor) {
		r.placeholder = p
	}
}

// WithReveal sets how many runes partial_reveal keeps at each end of a span.
func WithReveal(prefix, suffix int) Option {
	return func(r *Redactor) {
		if prefix >= 0 {
			r.prefix = prefix
		}
		if suffix >= 0 {
			r.suffix = suffix
		}
	}
}

// Redactor is immutable and safe for concurrent use.
type Redactor struct {
	placeholder string
	prefix      int
	suffix      int
}

// New creates a redactor.
func New(opts ...Option) *Redactor {
	r := &Redactor{
		placeholder: chatguard.DefaultPlaceholder,
		prefix:      chatguard.DefaultRevealPrefix,
		suffix:      chatguard.DefaultRevealSuffix,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.placeholder == "" {
		r.placeholder = chatguard.DefaultPlaceholder
	}
	return r
}

// Placeholder returns the configured fixed token.
func (r *Redactor) Placeholder() string {
	return r.placeholder
}

// Redact applies mask to spans of text. Spans are clipped to the text, and
// overlapping or adjacent spans are merged before rewriting.
func (r *Redactor) Redact(text string, mask chatguard.MaskStrategy, spans []chatguard.Span) string {
	if mask == chatguard.MaskNone || len(spans) == 0 || text == "" {
		return text
	}
	merged := classify.Normalize(text, spans)
	if len(merged) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, s := range merged {
		b.WriteString(text[pos:s.Start])
		b.WriteString(r.rewrite(s.Text, mask))
		pos = s.End
	}
	b.WriteString(text[pos:])
	return b.String()
}

// RedactHits masks the spans of several rules in one pass, each by its own
// strategy. Where spans of different rules overlap, the earlier hit wins.
func (r *Redactor) RedactHits(text string, hits []classify.Hit) string {
	type masked struct {
		span chatguard.Span
		mask chatguard.MaskStrategy
	}

	var claimed []masked
	for _, h := range hits {
		if h.Rule == nil || h.Rule.Mask == chatguard.MaskNone {
			continue
		}
		for _, s := range classify.Normalize(text, h.Spans) {
			overlaps := false
			for _, c := range claimed {
				if s.Start < c.span.End && c.span.Start < s.End {
					overlaps = true
					break
				}
			}
			if !overlaps {
				claimed = append(claimed, masked{span: s, mask: h.Rule.Mask})
			}
		}
	}
	if len(claimed) == 0 {
		return text
	}

	// Rewrite right to left so earlier offsets stay valid.
	for i := 1; i < len(claimed); i++ {
		for j := i; j > 0 && claimed[j].span.Start > claimed[j-1].span.Start; j-- {
			claimed[j], claimed[j-1] = claimed[j-1], claimed[j]
		}
	}
	out := text
	for _, c := range claimed {
		out = out[:c.span.Start] + r.rewrite(c.span.Text, c.mask) + out[c.span.End:]
	}
	return out
}

func (r *Redactor) rewrite(s string, mask chatguard.MaskStrategy) string {
	switch mask {
	case chatguard.MaskNone:
		return s
	case chatguard.MaskPartialReveal:
		n := utf8.RuneCountInString(s)
		if n <= r.prefix+r.suffix+1 {
			return r.placeholder
		}
		runes := []rune(s)
		return string(runes[:r.prefix]) + r.placeholder + string(runes[n-r.suffix:])
	default:
		return r.placeholder
	}
}

// IsSafe reports whether a message at sev may be delivered unchanged.
func IsSafe(sev chatguard.Severity) bool {
	return !sev.Blocking()
}
