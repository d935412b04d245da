package visibility

import (
	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/notice"
)

// Rendered is the message as delivered to one viewer.
type Rendered struct {
	Visible     bool   // Whether the viewer receives the message at all
	Text        string // Text to display
	IsReplaced  bool   // Whether Text differs from what the sender typed
	ContentHash string // Hash of the original text, for audit
	Message     string // Optional notice shown next to the message
}

// Renderer renders moderated messages per viewer.
type Renderer struct {
	Policy Policy
	Lang   string

	// Replacement is shown to recipients under PolicyReplaceOnViolation.
	Replacement string
}

// NewRenderer creates a renderer with the filtered policy.
func NewRenderer() *Renderer {
	return &Renderer{
		Policy:      PolicyFiltered,
		Lang:        notice.DefaultLang,
		Replacement: "[운영 정책에 따라 가려진 메시지입니다]",
	}
}

// Render returns what viewer receives for result.
func (r *Renderer) Render(result chatguard.ModerationResult, viewer ViewerRole) Rendered {
	out := Rendered{ContentHash: result.ContentHash}

	if !CanView(r.Policy, result, viewer) {
		return out
	}
	out.Visible = true

	switch {
	case viewer == ViewerAdmin:
		out.Text = result.OriginalText
	case viewer == ViewerRecipient && result.Blocking() && r.Policy == PolicyReplaceOnViolation:
		out.Text = r.Replacement
	default:
		out.Text = result.FilteredText
	}
	out.IsReplaced = out.Text != result.OriginalText

	if viewer == ViewerSender && result.Blocking() {
		out.Message = notice.ForResult(result, r.Lang)
	}
	return out
}
