package ai

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tertulia/internal/group"
	"tertulia/internal/message"
	"tertulia/pkg/middleware"
	"tertulia/pkg/response"
)

// TriggerRequest represents the request to summon the AI participant
type TriggerRequest struct {
	TriggerText    string            `json:"trigger_text" validate:"required"`
	RecentMessages []TranscriptEntry `json:"recent_messages"`
}

// Handler handles HTTP requests for the AI responder
type Handler struct {
	service *Service
}

// NewHandler creates a new AI handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for AI endpoints. It is mounted under
// /groups/{groupID}/ai and reads the group from the outer path.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Respond)

	return r
}

// Respond handles POST /groups/{groupID}/ai
// @Summary      Trigger the AI participant
// @Description  Generate an AI reply from the trigger message and recent context, and persist it as a group message
// @Tags         ai
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body TriggerRequest true "Trigger message and recent context"
// @Success      201 {object} response.APIResponse{data=message.MessageResponse}
// @Failure      402 {object} response.APIResponse
// @Failure      429 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /groups/{groupID}/ai [post]
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.TriggerText == "" {
		response.BadRequest(w, "Trigger text is required")
		return
	}

	msg, err := h.service.Respond(r.Context(), groupID, userID, req.TriggerText, req.RecentMessages)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			response.TooManyRequests(w, "Límite de peticiones alcanzado. Inténtalo de nuevo más tarde.")
		case errors.Is(err, ErrQuotaExceeded):
			response.PaymentRequired(w, "Sin créditos disponibles para el asistente.")
		case errors.Is(err, ErrNotTagged):
			response.BadRequest(w, err.Error())
		case errors.Is(err, group.ErrGroupNotFound):
			response.NotFound(w, err.Error())
		case errors.Is(err, message.ErrNotMember):
			response.Forbidden(w, err.Error())
		default:
			response.BadGateway(w, "El asistente no pudo generar una respuesta.")
		}
		return
	}

	response.JSON(w, http.StatusCreated, msg.ToResponse())
}
