package rules

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/heibot/chatguard"
)

// Separator fragments shared by the numeric patterns. A phone group may be
// split by spaces around one punctuation mark, e.g. "010 - 1234", "(010)1234"
// or "010ㅡ1234".
const (
	sep        = `\s{0,3}[.\-/~_ㅡ)]?\s{0,3}`
	hangulSep  = `[\s.\-/~_ㅡ]{0,2}`
	digitClass = `[0-9영공일이삼사오육칠팔구]`
)

// hangulDigits maps spelled Korean digits to their value.
var hangulDigits = map[rune]byte{
	'영': '0', '공': '0', '일': '1', '이': '2', '삼': '3',
	'사': '4', '오': '5', '육': '6', '칠': '7', '팔': '8', '구': '9',
}

const (
	messengerHangul = `카카오톡|카카오|카톡|까톡|라인|텔레그램|텔레|위챗|인스타그램|인스타`
	messengerLatin  = `(?i:\b(?:kakao\s?talk|kakao|katalk|line|telegram|wechat|weixin|instagram|insta)\b)`
	messengerAny    = `(?:` + messengerHangul + `|` + messengerLatin + `)`
	handle          = `@?[A-Za-z0-9][A-Za-z0-9_.\-]{2,}`
)

// Phone numbers.
var (
	phoneInternational = Rule{
		ID:          "phone_international_kr",
		Category:    chatguard.CategoryPhone,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "+82 or 82- international form of a Korean number",
		Matcher: Pattern(`(?:\+\s?|\b)82` + sep + `(?:\(0\)|0)?` + sep +
			`(?:1[016789]|2|[3-6][1-5])` + sep + `\d{3,4}` + sep + `\d{4}\b`),
	}

	phoneMobile = Rule{
		ID:          "phone_mobile_kr",
		Category:    chatguard.CategoryPhone,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "Korean mobile number with optional separators",
		Matcher:     Pattern(`\(?\b01[016789]` + sep + `\d{3,4}` + sep + `\d{4}\b`),
	}

	phoneLandline = Rule{
		ID:          "phone_landline_kr",
		Category:    chatguard.CategoryPhone,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "Korean landline number with area code",
		Matcher:     Pattern(`\(?\b0(?:2|[3-6][1-5])` + sep + `\d{3,4}` + sep + `\d{4}\b`),
	}

	phoneSpelled = Rule{
		ID:          "phone_spelled_kr",
		Category:    chatguard.CategoryPhone,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "phone number spelled with Korean digit words, e.g. 공일공",
		Matcher: Pattern(`[0영공]`+hangulSep+`[1일]`+hangulSep+digitClass+
			`(?:`+hangulSep+digitClass+`){7,8}`,
			Reject(notSpelledMobile)),
	}
)

// Email addresses.
var (
	emailPlain = Rule{
		ID:          "email_address",
		Category:    chatguard.CategoryEmail,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "local@domain.tld",
		Matcher:     Pattern(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)*\.[A-Za-z]{2,}`),
	}

	emailObfuscated = Rule{
		ID:          "email_obfuscated",
		Category:    chatguard.CategoryEmail,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "address with the at-sign spelled out (at, 골뱅이)",
		Matcher: Pattern(`(?i)[a-z0-9._%+\-]+\s?(?:\(at\)|\[at\]|골뱅이)\s?[a-z0-9\-]+` +
			`(?:\s?(?:\.|\(dot\)|\[dot\]|닷|점)\s?[a-z]{2,})+`),
	}
)

// Bank accounts.
var (
	accountKeyword = Rule{
		ID:          "account_keyword_kr",
		Category:    chatguard.CategoryFinancial,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "계좌/통장 followed by digits",
		Matcher:     Pattern(`(?:계좌번호|계좌|통장)\s?[:：]?[^\d\n]{0,15}?\d[\d\s\-]{4,}\d`),
	}

	accountBankName = Rule{
		ID:          "account_bank_name_kr",
		Category:    chatguard.CategoryFinancial,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "bank name followed by an account number",
		Matcher: Pattern(`(?:국민|신한|우리|하나|농협|기업|카카오뱅크|토스뱅크|케이뱅크|우체국|새마을금고|신협|SC제일|씨티)` +
			`(?:은행)?\s?[:：]?\s?\d[\d\s\-]{7,}\d`),
	}

	accountKeywordEnglish = Rule{
		ID:          "account_keyword_en",
		Category:    chatguard.CategoryFinancial,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "account number keyword followed by digits",
		Matcher:     Pattern(`(?i)\b(?:bank\s+)?(?:account|acct)\s*(?:no\.?|number|num|#)?\s*[:：]?\s*\d[\d\s\-]{4,}\d`),
	}

	accountDigitGroups = Rule{
		ID:          "account_digit_groups",
		Category:    chatguard.CategoryFinancial,
		Severity:    chatguard.SeverityCritical,
		Mask:        chatguard.MaskFixedToken,
		Description: "hyphenated digit groups shaped like an account number",
		Matcher:     Pattern(`\b\d{3,6}-\d{2,6}-\d{2,6}\b`, Reject(isCalendarDate)),
	}
)

// Messenger handles.
var (
	messengerLabeled = Rule{
		ID:          "messenger_labeled_handle",
		Category:    chatguard.CategoryMessenger,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "messenger name, colon or label, then a handle",
		Matcher: Pattern(messengerAny+`\s?(?:아이디|계정|(?i:id))?\s?[:：=]\s?`+handle,
			Reject(lineInsideWord)),
	}

	messengerIDLabel = Rule{
		ID:          "messenger_id_label",
		Category:    chatguard.CategoryMessenger,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "messenger name and an id label without a colon",
		Matcher: Pattern(messengerAny+`\s?(?:아이디|계정|(?i:\bid\b))\s?(?:는|은)?\s?`+handle,
			Reject(lineInsideWord)),
	}

	messengerHandleWithDigits = Rule{
		ID:          "messenger_handle_digits",
		Category:    chatguard.CategoryMessenger,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "messenger name followed by a handle containing digits",
		Matcher: Pattern(messengerAny+`\s+@?[A-Za-z][A-Za-z0-9_.\-]*\d[A-Za-z0-9_.\-]*`,
			Reject(lineInsideWord)),
	}

	messengerMoveRequest = Rule{
		ID:          "messenger_move_request",
		Category:    chatguard.CategoryMessenger,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "request to continue the conversation on a messenger",
		Matcher: Pattern(`(?:`+messengerHangul+`)\s?(?:으로|로|에서)?\s?`+
			`(?:연락|추가|친추|친구\s?추가|주세요|줘요|줘|보내|오세요|할게요|해요|ㄱㄱ)`,
			Reject(lineInsideWord)),
	}

	messengerBareHandle = Rule{
		ID:          "messenger_bare_handle",
		Category:    chatguard.CategoryMessenger,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "standalone @handle token",
		Matcher:     Pattern(`(?:^|[\s(\[])(@[A-Za-z0-9_][A-Za-z0-9_.]{1,28}[A-Za-z0-9_])`, Group(1)),
	}
)

// Off-platform deal solicitation.
var (
	offPlatformDirectDeal = Rule{
		ID:          "offplatform_direct_deal",
		Category:    chatguard.CategoryOffPlatform,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "direct deal / pay each other directly",
		Matcher: Pattern(`직\s?거래|직접\s?(?:거래|결제|입금|송금)|개인\s?(?:거래|결제)|따로\s?(?:거래|결제|입금|송금|계산)` +
			`|(?i:\bdirect(?:ly)?\s+(?:deal|transaction|payment|transfer)\b|\bpay\s+(?:you|me)\s+directly\b|\bdeal\s+directly\b)`),
	}

	offPlatformFeeAvoidance = Rule{
		ID:          "offplatform_fee_avoidance",
		Category:    chatguard.CategoryOffPlatform,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "skip or save the platform fee",
		Matcher: Pattern(`수수료[를는]?\s?(?:없이|없는|안\s?내|안\s?떼|아끼|아껴|아낄|빼고|피해|피하|절약|줄이|안\s?나가)` +
			`|(?i:\b(?:skip|avoid|save|bypass|dodge|no)\s+(?:the\s+)?(?:platform\s+|service\s+|app\s+)?fees?\b)`),
	}

	offPlatformOutside = Rule{
		ID:          "offplatform_outside",
		Category:    chatguard.CategoryOffPlatform,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "meet or settle outside the platform",
		Matcher: Pattern(`(?:앱|어플|플랫폼|사이트)\s?(?:밖|말고|외부)(?:에서|으로|로)?|오프라인으로\s?(?:거래|결제)` +
			`|(?i:\b(?:outside|off)\s+(?:of\s+)?(?:the\s+)?(?:app|platform|site)\b)`),
	}

	offPlatformCash = Rule{
		ID:          "offplatform_cash",
		Category:    chatguard.CategoryOffPlatform,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "cash only or an outside payment channel",
		Matcher: Pattern(`현금\s?(?:으로|만)?\s?(?:결제|거래|드릴|줄게|줄께|주세요|받|계산|지불)|현금만|현찰|계좌\s?이체로|무통장\s?입금` +
			`|(?i:\bcash\s+only\b|\bpay\s+(?:in|with)\s+cash\b|\b(?:venmo|paypal|zelle|cash\s?app)\b)`),
	}

	offPlatformRenegotiation = Rule{
		ID:          "offplatform_renegotiation",
		Category:    chatguard.CategoryOffPlatform,
		Severity:    chatguard.SeverityHigh,
		Mask:        chatguard.MaskFixedToken,
		Description: "price renegotiated against the listed amount",
		Matcher: Pattern(`(?:표시|등록|게시|올린|올리신|제시|적힌|정해진)\s?(?:된|한|하신)?\s?(?:가격|금액|비용|페이)(?:보다|에서)\s?\d[\d,]*\s?(?:원|만\s?원|천\s?원|%|퍼센트|프로)?\s?(?:더|덜)?` +
			`|\d[\d,]*\s?(?:원|만\s?원|천\s?원|%|퍼센트|프로)?\s?(?:더|덜)\s?(?:드릴|줄|주실|받|깎|빼|낼)` +
			`|(?i:\b\d[\d,.]*\s*(?:dollars?|bucks|usd|\$|%|percent)?\s*(?:more|less|extra|cheaper|off)\s+than\s+(?:the\s+)?(?:listed|listing|posted|asking|quoted)(?:\s+price)?\b)`),
	}
)

// Abusive language.
var offensiveTokens = Rule{
	ID:          "offensive_tokens",
	Category:    chatguard.CategoryOffensive,
	Severity:    chatguard.SeverityMedium,
	Mask:        chatguard.MaskFixedToken,
	Description: "profanity list, Korean and English",
	Matcher:     profanityMatcher(),
}

// Advisory numeric runs.
var suspiciousDigits = Rule{
	ID:          "numeric_long_run",
	Category:    chatguard.CategoryNumeric,
	Severity:    chatguard.SeverityLow,
	Mask:        chatguard.MaskNone,
	Description: "ten or more consecutive digits",
	Matcher:     Pattern(`\d{10,}`),
}

var defaultSet = MustSet(
	phoneInternational,
	phoneMobile,
	phoneLandline,
	phoneSpelled,
	emailPlain,
	emailObfuscated,
	accountKeyword,
	accountBankName,
	accountKeywordEnglish,
	accountDigitGroups,
	messengerLabeled,
	messengerIDLabel,
	messengerHandleWithDigits,
	messengerMoveRequest,
	messengerBareHandle,
	offPlatformDirectDeal,
	offPlatformFeeAvoidance,
	offPlatformOutside,
	offPlatformCash,
	offPlatformRenegotiation,
	offensiveTokens,
	suspiciousDigits,
)

// Default returns the built-in rule catalogue.
func Default() *Set {
	return defaultSet
}

// normalizeDigits rewrites spelled Korean digits to ASCII digits and drops
// separators, e.g. "공일공-일이삼사" becomes "0101234".
func normalizeDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if d, ok := hangulDigits[r]; ok {
			b.WriteByte(d)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// notSpelledMobile rejects spelled matches that carry no Hangul digit, which
// the ASCII rules own, or whose digits do not open with a mobile prefix.
func notSpelledMobile(text string, span chatguard.Span) bool {
	if withoutHangulDigit(text, span) {
		return true
	}
	d := normalizeDigits(span.Text)
	return len(d) < 3 || d[:2] != "01" || !strings.ContainsRune("016789", rune(d[2]))
}

func withoutHangulDigit(_ string, span chatguard.Span) bool {
	for _, r := range span.Text {
		if _, ok := hangulDigits[r]; ok {
			return false
		}
	}
	return true
}

// isCalendarDate rejects YYYY-MM-DD shaped groups.
func isCalendarDate(_ string, span chatguard.Span) bool {
	parts := strings.Split(span.Text, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) > 2 || len(parts[2]) > 2 {
		return false
	}
	month, err1 := strconv.Atoi(parts[1])
	day, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return false
	}
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

// lineInsideWord rejects 라인 when it ends a longer Hangul word (온라인, 데드라인).
func lineInsideWord(text string, span chatguard.Span) bool {
	if !strings.HasPrefix(span.Text, "라인") || span.Start == 0 {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:span.Start])
	return isHangulSyllable(prev)
}

func isHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}
