package rules

import (
	"regexp"
	"strings"

	"github.com/heibot/chatguard"
)

// koreanProfanity is matched with optional filler between syllables
// (씨.발, 씨1발, 병_신). Whitespace is not filler: "3시 발표" is benign.
var koreanProfanity = []string{
	"씨발", "시발", "씨바", "씨빨", "씨팔", "시팔", "쓰발", "썅", "쌍년", "쌍놈",
	"병신", "븅신", "빙신", "좆", "좇같", "존나", "졸라", "지랄", "염병",
	"개새끼", "개새기", "개색기", "개색끼", "개세끼", "개쉐이", "호로새끼",
	"미친놈", "미친년", "미친새끼", "또라이", "닥쳐", "엿먹어", "등신",
	"니애미", "느금마", "애미없",
}

// consonantProfanity lists jamo abbreviations matched literally.
var consonantProfanity = []string{
	"ㅅㅂ", "ㅆㅂ", "ㅂㅅ", "ㅄ", "ㅈㄴ", "ㅈㄹ", "ㅁㅊ", "ㄲㅈ", "ㅗㅗ",
}

// englishProfanity holds case-insensitive expressions anchored on word boundaries.
var englishProfanity = []string{
	`f(?:u|\*|v|@)ck\w*`,
	`fck\w*`,
	`fuk\w*`,
	`fuq\w*`,
	`motherf\w*`,
	`sh[i1!]t\w*`,
	`b[i1!]tch\w*`,
	`a(?:ss|55|\$\$)hole\w*`,
	`bastard\w*`,
	`dick(?:head)?s?`,
	`cunt\w*`,
	`dumbass\w*`,
	`retard\w*`,
	`wtf`,
	`stfu`,
}

// profanityFiller may appear between syllables of a Korean token.
const profanityFiller = `[._\-·~,!1]{0,2}`

// rejectedContexts lists words that contain a profanity token but are benign,
// keyed by the token and holding the benign continuation.
var rejectedContexts = map[string][]string{
	"시발": {"점", "역"},
	"등신": {"대"},
}

func profanityMatcher() Matcher {
	var alts []string
	for _, tok := range koreanProfanity {
		alts = append(alts, loosen(tok))
	}
	for _, tok := range consonantProfanity {
		alts = append(alts, regexp.QuoteMeta(tok))
	}

	english := `(?i:\b(?:` + strings.Join(englishProfanity, "|") + `)\b)`
	expr := `(?:` + strings.Join(alts, "|") + `)|` + english

	return Pattern(expr, Reject(benignContinuation))
}

// loosen allows filler between the syllables of tok.
func loosen(tok string) string {
	runes := []rune(tok)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = regexp.QuoteMeta(string(r))
	}
	return strings.Join(parts, profanityFiller)
}

func benignContinuation(text string, span chatguard.Span) bool {
	rest := text[span.End:]
	for tok, benign := range rejectedContexts {
		if stripFiller(span.Text) != tok {
			continue
		}
		for _, b := range benign {
			if strings.HasPrefix(rest, b) {
				return true
			}
		}
	}
	return false
}

func stripFiller(s string) string {
	return strings.Map(func(r rune) rune {
		if isHangulSyllable(r) {
			return r
		}
		return -1
	}, s)
}
