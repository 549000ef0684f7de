package goBankID

import (
	"net/url"
	"strings"
	"time"
)

// MessageKey identifies a user-facing message. Callers translate keys; the
// English defaults are available through DefaultMessage.
type MessageKey string

const (
	MessageQRInstructions   MessageKey = "qr_instructions"
	MessageUserCancel       MessageKey = "hintcode_userCancel"
	MessageUserSign         MessageKey = "hintcode_userSign"
	MessageStartFailed      MessageKey = "hintcode_startFailed"
	MessageCertificateErr   MessageKey = "hintcode_certificateErr"
	MessageStatusExpired    MessageKey = "status_expired"
	MessageStatusComplete   MessageKey = "status_complete"
	MessageStatusNoUser     MessageKey = "status_complete_no_user"
	MessageStatusFailed     MessageKey = "status_failed"
	MessageSomethingWrong   MessageKey = "something_went_wrong"
	MessageSessionIssueFail MessageKey = "session_creation_failed"
)

// Provider hint codes with a dedicated message.
const (
	HintUserCancel     = "userCancel"
	HintUserSign       = "userSign"
	HintStartFailed    = "startFailed"
	HintCertificateErr = "certificateErr"
)

var hintMessages = map[string]MessageKey{
	HintUserCancel:     MessageUserCancel,
	HintUserSign:       MessageUserSign,
	HintStartFailed:    MessageStartFailed,
	HintCertificateErr: MessageCertificateErr,
}

var defaultMessages = map[MessageKey]string{
	MessageQRInstructions:   "Scan the QR code with your Mobile BankID app.",
	MessageUserCancel:       "Action cancelled.",
	MessageUserSign:         "Enter your security code in the BankID app and select Identify.",
	MessageStartFailed:      "Failed to scan the QR code.",
	MessageCertificateErr:   "The BankID you are trying to use is revoked or too old. Please use another BankID or order a new one from your internet bank.",
	MessageStatusExpired:    "BankID identification session has expired. Please try again.",
	MessageStatusComplete:   "BankID identification completed. Redirecting...",
	MessageStatusNoUser:     "BankID identification completed, but no user was found. Please try again.",
	MessageStatusFailed:     "BankID identification failed. Please try again.",
	MessageSomethingWrong:   "Something went wrong. Please try again.",
	MessageSessionIssueFail: "BankID identification completed, but the login session could not be created. Please try again.",
}

// HintMessageKey maps a provider hint code to its message key. Unknown or
// empty hints map to the QR scanning instructions.
func HintMessageKey(hint string) MessageKey {
	if key, ok := hintMessages[hint]; ok {
		return key
	}
	return MessageQRInstructions
}

// KnownHint reports whether hint has a dedicated message.
func KnownHint(hint string) bool {
	_, ok := hintMessages[hint]
	return ok
}

// DefaultMessage returns the English text for key, or the generic failure
// text for unknown keys.
func DefaultMessage(key MessageKey) string {
	if msg, ok := defaultMessages[key]; ok {
		return msg
	}
	return defaultMessages[MessageSomethingWrong]
}

// statusMessageKey picks the message for an interpreted order state. Failed
// orders show their hint message when the hint is known.
func statusMessageKey(status OrderStatus, hint string) MessageKey {
	switch status {
	case StatusComplete:
		return MessageStatusComplete
	case StatusCompleteNoUser:
		return MessageStatusNoUser
	case StatusExpired:
		return MessageStatusExpired
	case StatusFailed:
		if KnownHint(hint) {
			return hintMessages[hint]
		}
		return MessageStatusFailed
	default:
		return HintMessageKey(hint)
	}
}

// DeepLink builds the app launch URL for an auto-start token. Empty tokens
// yield an empty link.
func DeepLink(base, autoStartToken string) string {
	if autoStartToken == "" {
		return ""
	}
	if base == "" {
		base = defaultDeepLinkBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "?autostarttoken=" + url.QueryEscape(autoStartToken) + "&redirect=null"
}

// TimeLeftPercent returns the share of the validity window still remaining,
// clamped to [0, 100]. It is exactly 0 once elapsed reaches the window.
func TimeLeftPercent(elapsedSeconds int, window time.Duration) float64 {
	total := window.Seconds()
	if total <= 0 {
		return 0
	}
	elapsed := float64(elapsedSeconds)
	if elapsed >= total {
		return 0
	}
	if elapsed <= 0 {
		return 100
	}
	return (total - elapsed) / total * 100
}
