// Package classify walks an ordered rule set and reports the primary threat
// category of a message.
package classify

import (
	"sort"
	"strings"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/rules"
)

// Classification is the outcome of classifying one message.
type Classification struct {
	Rule  *rules.Rule      // Winning rule, nil when clean
	Spans []chatguard.Span // Sorted, non-overlapping spans of the winning category
}

// Matched reports whether any rule matched.
func (c Classification) Matched() bool {
	return c.Rule != nil
}

// Category returns the winning category, empty when clean.
func (c Classification) Category() chatguard.Category {
	if c.Rule == nil {
		return ""
	}
	return c.Rule.Category
}

// Severity returns the winning severity, SeverityNone when clean.
func (c Classification) Severity() chatguard.Severity {
	if c.Rule == nil {
		return chatguard.SeverityNone
	}
	return c.Rule.Severity
}

// Hit is the spans matched by a single rule.
type Hit struct {
	Rule  *rules.Rule
	Spans []chatguard.Span
}

// Classifier is safe for concurrent use.
type Classifier struct {
	set *rules.Set
}

// New creates a classifier over set. A nil set uses the built-in catalogue.
func New(set *rules.Set) *Classifier {
	if set == nil {
		set = rules.Default()
	}
	return &Classifier{set: set}
}

// Rules returns the rule set in use.
func (c *Classifier) Rules() *rules.Set {
	return c.set
}

// Classify evaluates rules in priority order and stops at the first rule with
// a match. Remaining rules of the same category still contribute spans, so
// every occurrence of the winning category can be masked; they never change
// the winning rule.
func (c *Classifier) Classify(text string) Classification {
	if strings.TrimSpace(text) == "" {
		return Classification{}
	}

	n := c.set.Len()
	for i := 0; i < n; i++ {
		r := c.set.At(i)
		spans := r.Match(text)
		if len(spans) == 0 {
			continue
		}

		for j := i + 1; j < n; j++ {
			other := c.set.At(j)
			if other.Category != r.Category {
				continue
			}
			spans = append(spans, other.Match(text)...)
		}
		return Classification{Rule: r, Spans: Normalize(text, spans)}
	}
	return Classification{}
}

// ScanAll evaluates every rule and returns all hits in priority order.
func (c *Classifier) ScanAll(text string) []Hit {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var hits []Hit
	n := c.set.Len()
	for i := 0; i < n; i++ {
		r := c.set.At(i)
		if spans := r.Match(text); len(spans) > 0 {
			hits = append(hits, Hit{Rule: r, Spans: Normalize(text, spans)})
		}
	}
	return hits
}

// Normalize clips spans to text, sorts them and merges overlapping or
// adjacent spans. Empty spans are dropped.
func Normalize(text string, spans []chatguard.Span) []chatguard.Span {
	if len(spans) == 0 {
		return nil
	}

	clipped := make([]chatguard.Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 {
			s.Start = 0
		}
		if s.End > len(text) {
			s.End = len(text)
		}
		if s.End <= s.Start {
			continue
		}
		clipped = append(clipped, s)
	}

	sort.Slice(clipped, func(i, j int) bool {
		if clipped[i].Start != clipped[j].Start {
			return clipped[i].Start < clipped[j].Start
		}
		return clipped[i].End > clipped[j].End
	})

	var out []chatguard.Span
	for _, s := range clipped {
		if last := len(out) - 1; last >= 0 && s.Start <= out[last].End {
			if s.End > out[last].End {
				out[last].End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	for i := range out {
		out[i].Text = text[out[i].Start:out[i].End]
	}
	return out
}
