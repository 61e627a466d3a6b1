package conversation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the webhook routes the transport calls into
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/events", h.HandleEvent)

	return r
}
