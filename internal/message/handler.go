package message

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tertulia/pkg/middleware"
	"tertulia/pkg/response"
)

// Handler handles HTTP requests for message operations
type Handler struct {
	service *Service
}

// NewHandler creates a new message handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for message endpoints. It is mounted under
// /groups/{groupID}/messages and reads the group from the outer path.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Send)
	r.Delete("/{messageID}", h.Delete)

	return r
}

// List handles GET /groups/{groupID}/messages
// @Summary      List group messages
// @Description  Messages in creation order with authors and reply previews resolved
// @Tags         messages
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]MessageResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupID}/messages [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewerID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	messages, err := h.service.List(r.Context(), groupID, viewerID)
	if err != nil {
		h.writeError(w, err, "Failed to list messages")
		return
	}

	messageResponses := make([]*MessageResponse, len(messages))
	for i, msg := range messages {
		messageResponses[i] = msg.ToResponse()
	}

	response.JSON(w, http.StatusOK, messageResponses)
}

// Send handles POST /groups/{groupID}/messages
// @Summary      Send a message
// @Description  Post a message to a group, optionally replying to another message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body SendMessageRequest true "Message to send"
// @Success      201 {object} response.APIResponse{data=MessageResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupID}/messages [post]
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	msg, aiMentioned, err := h.service.Send(r.Context(), groupID, userID, &req)
	if err != nil {
		h.writeError(w, err, "Failed to send message")
		return
	}

	resp := msg.ToResponse()
	resp.AIMentioned = aiMentioned
	response.JSON(w, http.StatusCreated, resp)
}

// Delete handles DELETE /groups/{groupID}/messages/{messageID}
// @Summary      Delete a message
// @Description  Authors delete their own messages; admins may delete any message
// @Tags         messages
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        messageID path string true "Message ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{groupID}/messages/{messageID} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		response.BadRequest(w, "Invalid message ID")
		return
	}

	if err := h.service.Delete(r.Context(), groupID, actorID, messageID); err != nil {
		h.writeError(w, err, "Failed to delete message")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Message deleted"})
}

func (h *Handler) actorAndGroup(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return uuid.Nil, uuid.Nil, false
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return uuid.Nil, uuid.Nil, false
	}

	return actorID, groupID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrMessageNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrNotAuthorized):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrEmptyContent):
		response.BadRequest(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}
