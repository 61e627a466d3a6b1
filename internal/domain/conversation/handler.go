package conversation

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
	"github.com/pilatesguru/studio-bot/internal/pkg/response"
	"github.com/pilatesguru/studio-bot/internal/pkg/validator"
)

// Handler handles transport webhook requests
type Handler struct {
	service *Service
}

// NewHandler creates conversation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// EventResponse is the reply envelope for one handled event.
type EventResponse struct {
	Prompts []prompt.Prompt `json:"prompts"`
}

// HandleEvent handles POST /events
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := response.DecodeJSON(r.Body, &ev); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errs := validator.Validate(ev); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	prompts, err := h.service.Handle(r.Context(), ev)
	if err != nil {
		log.Error().Err(err).Str("user_id", ev.UserID).Msg("conversation: handle event failed")
		response.InternalError(w)
		return
	}

	response.OK(w, EventResponse{Prompts: prompts})
}
