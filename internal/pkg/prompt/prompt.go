package prompt

// Prompt is one outbound message for the transport to render: text plus
// buttons. Choice tokens are opaque to the transport and come back verbatim
// in button-press events.
type Prompt struct {
	Text    string   `json:"text"`
	Choices []Choice `json:"choices,omitempty"`
	// Alert marks a transient notice the transport may show without
	// replacing the current message (e.g. a popup).
	Alert bool `json:"alert,omitempty"`
}

// Choice is a single button. URL choices open a link instead of sending
// their token back.
type Choice struct {
	Label string `json:"label"`
	Token string `json:"token,omitempty"`
	URL   string `json:"url,omitempty"`
}

// New builds a prompt from text and choices.
func New(text string, choices ...Choice) Prompt {
	return Prompt{Text: text, Choices: choices}
}

// Alert builds a transient notice prompt.
func Alert(text string) Prompt {
	return Prompt{Text: text, Alert: true}
}

// Btn builds a token choice.
func Btn(label, token string) Choice {
	return Choice{Label: label, Token: token}
}

// Link builds a URL choice.
func Link(label, url string) Choice {
	return Choice{Label: label, URL: url}
}
