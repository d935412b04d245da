package rules

import (
	"sort"

	"github.com/heibot/chatguard"
)

// Set is an immutable, validated and ordered rule catalogue.
// Rules are ordered by descending severity; rules of equal severity keep
// their declaration order, which is their priority.
type Set struct {
	rules []Rule
	index map[string]int
}

// NewSet validates rules and returns them as an ordered set.
func NewSet(rules ...Rule) (*Set, error) {
	if len(rules) == 0 {
		return nil, chatguard.ErrEmptyRuleSet
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)

	seen := make(map[string]bool, len(ordered))
	for _, r := range ordered {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, &chatguard.RuleError{RuleID: r.ID, Field: "id", Message: chatguard.ErrDuplicateRule.Error()}
		}
		seen[r.ID] = true
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity > ordered[j].Severity
	})

	index := make(map[string]int, len(ordered))
	for i, r := range ordered {
		index[r.ID] = i
	}

	return &Set{rules: ordered, index: index}, nil
}

// MustSet is like NewSet but panics on error.
func MustSet(rules ...Rule) *Set {
	s, err := NewSet(rules...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Rules returns a copy of the rules in evaluation order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// At returns the rule at evaluation position i.
func (s *Set) At(i int) *Rule {
	return &s.rules[i]
}

// Lookup returns the rule with the given ID.
func (s *Set) Lookup(id string) (Rule, bool) {
	i, ok := s.index[id]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// Categories returns the categories present, in evaluation order.
func (s *Set) Categories() []chatguard.Category {
	seen := make(map[chatguard.Category]bool)
	var cats []chatguard.Category
	for _, r := range s.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			cats = append(cats, r.Category)
		}
	}
	return cats
}

// With returns a new set holding the current rules followed by extra.
func (s *Set) With(extra ...Rule) (*Set, error) {
	all := make([]Rule, 0, len(s.rules)+len(extra))
	all = append(all, s.rules...)
	all = append(all, extra...)
	return NewSet(all...)
}

// Without returns a new set with the given rule IDs removed.
// Unknown IDs are reported as a rule error.
func (s *Set) Without(ids ...string) (*Set, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return nil, chatguard.NewRuleError(id, "id", "is not in the rule set")
		}
		drop[id] = true
	}

	var kept []Rule
	for _, r := range s.rules {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	return NewSet(kept...)
}
