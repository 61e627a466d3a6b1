package conversation

import "regexp"

// Event kinds accepted from the transport.
const (
	KindText    = "text"
	KindButton  = "button"
	KindContact = "contact"
)

// Event is one inbound user action. Text events carry the message in
// Payload, button events the pressed choice token, contact events the shared
// phone number.
type Event struct {
	UserID  string `json:"user_id" validate:"required,max=64"`
	Kind    string `json:"kind" validate:"required,event_kind"`
	Payload string `json:"payload" validate:"max=4096"`

	// Optional display name sent along with contact events.
	Name string `json:"name,omitempty" validate:"max=256"`
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone brings a shared phone number to the +7XXXXXXXXXX form the
// scheduling gateway expects. Returns "" when nothing usable remains.
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return ""
	}
	if len(digits) == 10 && (digits[0] == '7' || digits[0] == '8' || digits[0] == '9') {
		return "+7" + digits
	}
	return "+" + digits
}
