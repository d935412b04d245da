package rules

import (
	"errors"
	"testing"

	"github.com/heibot/chatguard"
)

func testRule(id string, cat chatguard.Category, sev chatguard.Severity, expr string) Rule {
	mask := chatguard.MaskFixedToken
	if !sev.Blocking() {
		mask = chatguard.MaskNone
	}
	return Rule{ID: id, Category: cat, Severity: sev, Mask: mask, Matcher: Pattern(expr)}
}

func TestNewSet_Validation(t *testing.T) {
	valid := testRule("ok", chatguard.CategoryPhone, chatguard.SeverityCritical, `\d+`)

	tests := []struct {
		name    string
		rules   []Rule
		wantErr error
		field   string
	}{
		{
			name:    "empty",
			rules:   nil,
			wantErr: chatguard.ErrEmptyRuleSet,
		},
		{
			name:    "missing id",
			rules:   []Rule{{Category: chatguard.CategoryPhone, Severity: chatguard.SeverityHigh, Mask: chatguard.MaskFixedToken, Matcher: Pattern(`x`)}},
			wantErr: chatguard.ErrInvalidRule,
			field:   "id",
		},
		{
			name:    "unknown category",
			rules:   []Rule{testRule("r", "weather", chatguard.SeverityHigh, `x`)},
			wantErr: chatguard.ErrInvalidRule,
			field:   "category",
		},
		{
			name:    "severity none",
			rules:   []Rule{{ID: "r", Category: chatguard.CategoryPhone, Severity: chatguard.SeverityNone, Mask: chatguard.MaskNone, Matcher: Pattern(`x`)}},
			wantErr: chatguard.ErrInvalidRule,
			field:   "severity",
		},
		{
			name:    "nil matcher",
			rules:   []Rule{{ID: "r", Category: chatguard.CategoryPhone, Severity: chatguard.SeverityHigh, Mask: chatguard.MaskFixedToken}},
			wantErr: chatguard.ErrInvalidRule,
			field:   "matcher",
		},
		{
			name:    "numeric must not mask",
			rules:   []Rule{{ID: "r", Category: chatguard.CategoryNumeric, Severity: chatguard.SeverityLow, Mask: chatguard.MaskFixedToken, Matcher: Pattern(`\d`)}},
			wantErr: chatguard.ErrInvalidRule,
			field:   "mask",
		},
		{
			name:    "blocking rule without mask",
			rules:   []Rule{{ID: "r", Category: chatguard.CategoryPhone, Severity: chatguard.SeverityHigh, Mask: chatguard.MaskNone, Matcher: Pattern(`\d`)}},
			wantErr: chatguard.ErrInvalidRule,
			field:   "mask",
		},
		{
			name:    "duplicate id",
			rules:   []Rule{valid, valid},
			wantErr: chatguard.ErrInvalidRule,
			field:   "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSet(tt.rules...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.field == "" {
				return
			}
			var re *chatguard.RuleError
			if !errors.As(err, &re) {
				t.Fatalf("error %T is not a RuleError", err)
			}
			if re.Field != tt.field {
				t.Errorf("field = %q, want %q", re.Field, tt.field)
			}
		})
	}
}

func TestNewSet_Order(t *testing.T) {
	set, err := NewSet(
		testRule("low", chatguard.CategoryNumeric, chatguard.SeverityLow, `\d{10,}`),
		testRule("high_a", chatguard.CategoryMessenger, chatguard.SeverityHigh, `a`),
		testRule("critical", chatguard.CategoryPhone, chatguard.SeverityCritical, `\d`),
		testRule("high_b", chatguard.CategoryMessenger, chatguard.SeverityHigh, `b`),
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}

	want := []string{"critical", "high_a", "high_b", "low"}
	for i, r := range set.Rules() {
		if r.ID != want[i] {
			t.Errorf("position %d = %s, want %s", i, r.ID, want[i])
		}
	}
	if set.At(0).ID != "critical" {
		t.Errorf("At(0) = %s", set.At(0).ID)
	}
	if r, ok := set.Lookup("high_b"); !ok || r.Severity != chatguard.SeverityHigh {
		t.Errorf("Lookup(high_b) = %+v, %v", r, ok)
	}
	if _, ok := set.Lookup("missing"); ok {
		t.Error("Lookup(missing) reported a rule")
	}

	cats := set.Categories()
	if len(cats) != 3 || cats[0] != chatguard.CategoryPhone || cats[2] != chatguard.CategoryNumeric {
		t.Errorf("Categories = %v", cats)
	}
}

func TestSet_RulesIsCopy(t *testing.T) {
	set := Default()
	rs := set.Rules()
	rs[0].ID = "mutated"
	if set.At(0).ID == "mutated" {
		t.Error("Rules exposed the internal slice")
	}
}

func TestSet_WithWithout(t *testing.T) {
	base := Default()

	trimmed, err := base.Without("offensive_tokens", "numeric_long_run")
	if err != nil {
		t.Fatalf("Without: %v", err)
	}
	if trimmed.Len() != base.Len()-2 {
		t.Errorf("Len = %d, want %d", trimmed.Len(), base.Len()-2)
	}
	if _, ok := trimmed.Lookup("offensive_tokens"); ok {
		t.Error("offensive_tokens still present")
	}
	if _, ok := base.Lookup("offensive_tokens"); !ok {
		t.Error("Without mutated the base set")
	}

	if _, err := base.Without("nope"); !errors.Is(err, chatguard.ErrInvalidRule) {
		t.Errorf("Without(nope) error = %v", err)
	}

	extra := testRule("venue_code", chatguard.CategoryOffPlatform, chatguard.SeverityCritical, `VENUE-\d+`)
	grown, err := base.With(extra)
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if grown.Len() != base.Len()+1 {
		t.Errorf("Len = %d, want %d", grown.Len(), base.Len()+1)
	}
	r, ok := firstMatch(grown, "meet at VENUE-42")
	if !ok || r.ID != "venue_code" {
		t.Errorf("firstMatch = %v, %v", r.ID, ok)
	}

	if _, err := base.With(extra, extra); !errors.Is(err, chatguard.ErrInvalidRule) {
		t.Errorf("With duplicate error = %v", err)
	}
}

func TestCompilePattern_Group(t *testing.T) {
	if _, err := CompilePattern(`(a)(b)`, Group(3)); err == nil {
		t.Error("expected an error for an out of range group")
	}
	if _, err := CompilePattern(`(`); err == nil {
		t.Error("expected an error for an invalid expression")
	}
	m, err := CompilePattern(`x(\d+)`, Group(1))
	if err != nil {
		t.Fatalf("CompilePattern: %v", err)
	}
	spans := m.Match("x12 x345")
	if len(spans) != 2 || spans[0].Text != "12" || spans[1].Text != "345" {
		t.Errorf("spans = %+v", spans)
	}
}

func TestMatcherFunc(t *testing.T) {
	m := MatcherFunc(func(text string) []chatguard.Span {
		return []chatguard.Span{{Start: 0, End: len(text), Text: text}}
	})
	r := Rule{ID: "all", Category: chatguard.CategoryOffensive, Severity: chatguard.SeverityMedium, Mask: chatguard.MaskFixedToken, Matcher: m}
	if _, err := NewSet(r); err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if got := r.Match("abc"); len(got) != 1 || got[0].End != 3 {
		t.Errorf("Match = %+v", got)
	}
}
