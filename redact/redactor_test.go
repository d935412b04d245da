package redact

import (
	"regexp"
	"testing"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/classify"
	"github.com/heibot/chatguard/rules"
)

func TestRedact(t *testing.T) {
	r := New()

	tests := []struct {
		name  string
		text  string
		mask  chatguard.MaskStrategy
		spans []chatguard.Span
		want  string
	}{
		{
			name:  "fixed token",
			text:  "call 010-1234-5678 now",
			mask:  chatguard.MaskFixedToken,
			spans: []chatguard.Span{{Start: 5, End: 18}},
			want:  "call *** now",
		},
		{
			name:  "none is passthrough",
			text:  "call 010-1234-5678 now",
			mask:  chatguard.MaskNone,
			spans: []chatguard.Span{{Start: 5, End: 18}},
			want:  "call 010-1234-5678 now",
		},
		{
			name: "no spans",
			text: "hello",
			mask: chatguard.MaskFixedToken,
			want: "hello",
		},
		{
			name:  "overlapping spans become one token",
			text:  "abcdefghij",
			mask:  chatguard.MaskFixedToken,
			spans: []chatguard.Span{{Start: 2, End: 5}, {Start: 4, End: 8}},
			want:  "ab***ij",
		},
		{
			name:  "adjacent spans become one token",
			text:  "abcdefghij",
			mask:  chatguard.MaskFixedToken,
			spans: []chatguard.Span{{Start: 2, End: 4}, {Start: 4, End: 6}},
			want:  "ab***ghij",
		},
		{
			name:  "unsorted disjoint spans",
			text:  "abcdefghij",
			mask:  chatguard.MaskFixedToken,
			spans: []chatguard.Span{{Start: 8, End: 9}, {Start: 0, End: 1}},
			want:  "***bcdefgh***j",
		},
		{
			name:  "out of range spans are clipped",
			text:  "abc",
			mask:  chatguard.MaskFixedToken,
			spans: []chatguard.Span{{Start: -4, End: 1}, {Start: 2, End: 99}, {Start: 50, End: 60}},
			want:  "***b***",
		},
		{
			name:  "partial reveal",
			text:  "id: 010-1234-5678",
			mask:  chatguard.MaskPartialReveal,
			spans: []chatguard.Span{{Start: 4, End: 17}},
			want:  "id: 01***78",
		},
		{
			name:  "partial reveal short span falls back",
			text:  "abcde",
			mask:  chatguard.MaskPartialReveal,
			spans: []chatguard.Span{{Start: 0, End: 5}},
			want:  "***",
		},
		{
			name:  "partial reveal counts runes",
			text:  "카카오톡아이디",
			mask:  chatguard.MaskPartialReveal,
			spans: []chatguard.Span{{Start: 0, End: len("카카오톡아이디")}},
			want:  "카카***이디",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Redact(tt.text, tt.mask, tt.spans)
			if got != tt.want {
				t.Errorf("Redact = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedact_Options(t *testing.T) {
	r := New(WithPlaceholder("[removed]"), WithReveal(1, 0))
	if r.Placeholder() != "[removed]" {
		t.Errorf("Placeholder = %q", r.Placeholder())
	}
	got := r.Redact("abcdef", chatguard.MaskPartialReveal, []chatguard.Span{{Start: 0, End: 6}})
	if got != "a[removed]" {
		t.Errorf("Redact = %q", got)
	}

	if New(WithPlaceholder("")).Placeholder() != chatguard.DefaultPlaceholder {
		t.Error("empty placeholder should fall back to the default")
	}
}

var digitRun = regexp.MustCompile(`\d{4}`)

func TestRedact_PhoneFormats(t *testing.T) {
	c := classify.New(nil)
	r := New()

	for _, text := range []string{
		"010-1234-5678",
		"010 1234 5678",
		"01012345678",
		"연락처 010.1234.5678 입니다",
	} {
		t.Run(text, func(t *testing.T) {
			cls := c.Classify(text)
			if cls.Category() != chatguard.CategoryPhone {
				t.Fatalf("category = %s", cls.Category())
			}
			got := r.Redact(text, cls.Rule.Mask, cls.Spans)
			if digitRun.MatchString(got) {
				t.Errorf("filtered text %q still carries a digit run", got)
			}
		})
	}
}

func TestRedact_FixedPoint(t *testing.T) {
	c := classify.New(nil)
	r := New()

	for _, text := range []string{
		"제 번호는 010-1234-5678 이에요",
		"test.user@example.com 으로 메일 주세요",
		"카톡 아이디: abc123 으로 연락주세요",
		"직거래 하면 수수료 아낄 수 있어요",
		"씨발 진짜 010 9876 5432",
		"계좌번호 123-456-789012 로 보내주세요",
	} {
		t.Run(text, func(t *testing.T) {
			cls := c.Classify(text)
			once := r.Redact(text, cls.Rule.Mask, cls.Spans)

			for _, rule := range c.Rules().Rules() {
				if rule.Category != cls.Category() {
					continue
				}
				if spans := rule.Match(once); len(spans) > 0 {
					t.Errorf("rule %s still matches %q: %+v", rule.ID, once, spans)
				}
			}
		})
	}
}

func TestRedactHits_FixedPoint(t *testing.T) {
	c := classify.New(nil)
	r := New()

	for _, text := range []string{
		"씨발 진짜 010 9876 5432",
		"카톡 아이디: abc123 직거래 해요",
		"test.user@example.com 계좌번호 123-456-789012",
	} {
		once := r.RedactHits(text, c.ScanAll(text))
		if again := c.Classify(once); again.Matched() {
			t.Errorf("%q: rule %s matches the masked text %q", text, again.Rule.ID, once)
		}
	}
}

func TestRedactHits(t *testing.T) {
	c := classify.New(nil)
	r := New()

	text := "씨발 010-1234-5678"
	got := r.RedactHits(text, c.ScanAll(text))
	if got != "*** ***" {
		t.Errorf("RedactHits = %q", got)
	}

	advisory := "주문번호 1234567890123"
	if got := r.RedactHits(advisory, c.ScanAll(advisory)); got != advisory {
		t.Errorf("advisory hit was rewritten: %q", got)
	}

	mixed := []classify.Hit{
		{Rule: &rules.Rule{Mask: chatguard.MaskFixedToken}, Spans: []chatguard.Span{{Start: 0, End: 3}}},
		{Rule: &rules.Rule{Mask: chatguard.MaskPartialReveal}, Spans: []chatguard.Span{{Start: 2, End: 5}, {Start: 6, End: 14}}},
	}
	if got := r.RedactHits("abcdefghijklmn", mixed); got != "***defgh***mn" {
		t.Errorf("RedactHits mixed = %q", got)
	}
}

func TestIsSafe(t *testing.T) {
	tests := []struct {
		sev  chatguard.Severity
		want bool
	}{
		{chatguard.SeverityNone, true},
		{chatguard.SeverityLow, true},
		{chatguard.SeverityMedium, false},
		{chatguard.SeverityHigh, false},
		{chatguard.SeverityCritical, false},
	}
	for _, tt := range tests {
		if got := IsSafe(tt.sev); got != tt.want {
			t.Errorf("IsSafe(%s) = %v, want %v", tt.sev, got, tt.want)
		}
	}
}
