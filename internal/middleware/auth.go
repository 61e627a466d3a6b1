package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pilatesguru/studio-bot/internal/pkg/response"
)

// WebhookAuth authorizes transport callbacks with a shared bearer secret.
// An empty configured secret disables the check (local development).
func WebhookAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == header || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				response.Unauthorized(w, "Invalid webhook token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
