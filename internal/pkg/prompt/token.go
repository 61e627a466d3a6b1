package prompt

import "strings"

// Token helpers. Action tokens are "verb:argument" strings, e.g. "svc:12",
// "time:3", "pay:check:2d1f...". Split stops after the first separator so
// arguments may themselves contain colons.

// Action returns the verb part of a token.
func Action(token string) string {
	if i := strings.IndexByte(token, ':'); i >= 0 {
		return token[:i]
	}
	return token
}

// Arg returns the argument part of a token, or "" when there is none.
func Arg(token string) string {
	if i := strings.IndexByte(token, ':'); i >= 0 {
		return token[i+1:]
	}
	return ""
}

// Join builds a token from a verb and an argument.
func Join(action, arg string) string {
	return action + ":" + arg
}

// HasPrefix reports whether the token starts with the given verb.
func HasPrefix(token, action string) bool {
	return token == action || strings.HasPrefix(token, action+":")
}
