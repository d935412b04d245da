// Package notice provides the user-facing warning text shown when a message
// is filtered. Lookups never fail: unknown inputs fall back to generic text.
package notice

import (
	"strings"

	"github.com/heibot/chatguard"
)

// Supported languages.
const (
	LangKorean  = "ko"
	LangEnglish = "en"
)

// DefaultLang is used when the requested language has no table.
const DefaultLang = LangKorean

type key struct {
	category chatguard.Category
	severity chatguard.Severity
}

type table struct {
	exact      map[key]string
	byCategory map[chatguard.Category]string
	bySeverity map[chatguard.Severity]string
	generic    string
}

var tables = map[string]table{
	LangKorean: {
		exact: map[key]string{
			{chatguard.CategoryPhone, chatguard.SeverityCritical}:     "전화번호는 채팅으로 공유할 수 없어요. 안전한 거래를 위해 앱 안에서 대화해 주세요.",
			{chatguard.CategoryFinancial, chatguard.SeverityCritical}: "계좌 정보는 채팅으로 공유할 수 없어요. 결제는 앱의 안전결제를 이용해 주세요.",
		},
		byCategory: map[chatguard.Category]string{
			chatguard.CategoryPhone:       "연락처는 채팅으로 공유할 수 없어요.",
			chatguard.CategoryEmail:       "이메일 주소는 채팅으로 공유할 수 없어요.",
			chatguard.CategoryMessenger:   "외부 메신저로 대화를 옮기는 것은 허용되지 않아요.",
			chatguard.CategoryFinancial:   "계좌 정보는 채팅으로 공유할 수 없어요.",
			chatguard.CategoryOffPlatform: "앱 밖에서의 직거래나 수수료 회피 제안은 허용되지 않아요.",
			chatguard.CategoryOffensive:   "욕설이나 비하 표현은 사용할 수 없어요.",
		},
		bySeverity: map[chatguard.Severity]string{
			chatguard.SeverityCritical: "개인 정보가 포함된 메시지는 보낼 수 없어요.",
			chatguard.SeverityHigh:     "운영 정책에 어긋나는 내용이 포함되어 있어요.",
			chatguard.SeverityMedium:   "부적절한 표현이 포함되어 있어요.",
		},
		generic: "운영 정책에 따라 메시지 일부가 가려졌어요.",
	},
	LangEnglish: {
		exact: map[key]string{
			{chatguard.CategoryPhone, chatguard.SeverityCritical}:     "Phone numbers can't be shared in chat. Please keep the conversation in the app.",
			{chatguard.CategoryFinancial, chatguard.SeverityCritical}: "Bank details can't be shared in chat. Please pay through the app.",
		},
		byCategory: map[chatguard.Category]string{
			chatguard.CategoryPhone:       "Contact details can't be shared in chat.",
			chatguard.CategoryEmail:       "Email addresses can't be shared in chat.",
			chatguard.CategoryMessenger:   "Moving the conversation to another messenger isn't allowed.",
			chatguard.CategoryFinancial:   "Bank details can't be shared in chat.",
			chatguard.CategoryOffPlatform: "Offers to deal outside the app or skip fees aren't allowed.",
			chatguard.CategoryOffensive:   "Abusive language isn't allowed.",
		},
		bySeverity: map[chatguard.Severity]string{
			chatguard.SeverityCritical: "Messages with personal details can't be sent.",
			chatguard.SeverityHigh:     "Your message goes against our community rules.",
			chatguard.SeverityMedium:   "Your message contains inappropriate language.",
		},
		generic: "Part of your message was hidden under our community rules.",
	},
}

// Message returns the warning text for a violation. It falls back from
// category and severity, to category, to severity, to a generic message.
// Advisory results (low or none) have no warning and yield "".
func Message(category chatguard.Category, severity chatguard.Severity, lang string) string {
	if !severity.Blocking() {
		return ""
	}

	t, ok := tables[normalizeLang(lang)]
	if !ok {
		t = tables[DefaultLang]
	}

	if msg, ok := t.exact[key{category, severity}]; ok {
		return msg
	}
	if msg, ok := t.byCategory[category]; ok {
		return msg
	}
	if msg, ok := t.bySeverity[severity]; ok {
		return msg
	}
	return t.generic
}

// ForResult returns the warning text for a moderation result.
func ForResult(r chatguard.ModerationResult, lang string) string {
	if !r.IsViolation {
		return ""
	}
	return Message(r.Category, r.Severity, lang)
}

// normalizeLang reduces a tag like "en-US" to "en".
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
