// Package visibility decides what each participant of a conversation sees
// of a moderated message.
package visibility

import (
	"github.com/heibot/chatguard"
)

// Policy defines how a blocked message is shown to the other participant.
type Policy string

const (
	// PolicyFiltered shows the redacted text to everyone.
	PolicyFiltered Policy = "filtered"

	// PolicyReplaceOnViolation shows the recipient a fixed notice instead of
	// the redacted text.
	PolicyReplaceOnViolation Policy = "replace_on_violation"

	// PolicySenderOnlyOnViolation hides a blocked message from the recipient.
	PolicySenderOnlyOnViolation Policy = "sender_only_on_violation"
)

// ViewerRole represents who is viewing the message.
type ViewerRole string

const (
	ViewerSender    ViewerRole = "sender"    // Author of the message
	ViewerRecipient ViewerRole = "recipient" // Other participant
	ViewerAdmin     ViewerRole = "admin"     // Trust and safety staff
)

// CanView reports whether viewer sees the message at all.
func CanView(policy Policy, result chatguard.ModerationResult, viewer ViewerRole) bool {
	if viewer == ViewerAdmin || viewer == ViewerSender {
		return true
	}
	if !result.Blocking() {
		return true
	}
	return policy != PolicySenderOnlyOnViolation
}

// CanSend reports whether a user under action may keep sending messages.
func CanSend(action chatguard.Action) bool {
	switch action {
	case chatguard.ActionTempBan, chatguard.ActionPermanentBan:
		return false
	default:
		return true
	}
}
