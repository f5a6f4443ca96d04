package group

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tertulia/pkg/middleware"
	"tertulia/pkg/response"
)

// Handler handles HTTP requests for group and membership operations
type Handler struct {
	service *Service
}

// NewHandler creates a new group handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for group endpoints. Message and AI routers are
// mounted under the group path so they share the {groupID} parameter.
func (h *Handler) Routes(messages, ai chi.Router) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{groupID}", h.GetByID)
	r.Put("/{groupID}", h.Update)

	// Membership
	r.Post("/{groupID}/join", h.Join)
	r.Post("/{groupID}/leave", h.Leave)
	r.Get("/{groupID}/members", h.ListMembers)
	r.Put("/{groupID}/members/{userID}", h.UpdateMember)
	r.Delete("/{groupID}/members/{userID}", h.RemoveMember)

	// Access requests
	r.Post("/{groupID}/requests", h.RequestAccess)
	r.Get("/{groupID}/requests", h.ListPendingRequests)
	r.Post("/{groupID}/requests/{requestID}/approve", h.ApproveRequest)
	r.Post("/{groupID}/requests/{requestID}/reject", h.RejectRequest)

	if messages != nil {
		r.Mount("/{groupID}/messages", messages)
	}
	if ai != nil {
		r.Mount("/{groupID}/ai", ai)
	}

	return r
}

// Create handles POST /groups
// @Summary      Create a new group
// @Description  Create a group; the creator becomes its first admin
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        request body CreateGroupRequest true "Group creation request"
// @Success      201 {object} response.APIResponse{data=GroupResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /groups [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		response.BadRequest(w, "Group name is required")
		return
	}
	if req.AccessType == "" {
		req.AccessType = AccessTypeOpen
	}

	group, err := h.service.Create(r.Context(), creatorID, &req)
	if err != nil {
		h.writeError(w, err, "Failed to create group")
		return
	}

	response.JSON(w, http.StatusCreated, group.ToResponse())
}

// List handles GET /groups
// @Summary      List groups
// @Description  List all groups with membership info for the caller
// @Tags         groups
// @Produce      json
// @Success      200 {object} response.APIResponse{data=[]GroupResponse}
// @Router       /groups [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groups, err := h.service.List(r.Context(), viewerID)
	if err != nil {
		response.InternalError(w, "Failed to list groups")
		return
	}

	groupResponses := make([]*GroupResponse, len(groups))
	for i, group := range groups {
		groupResponses[i] = group.ToResponse()
	}

	response.JSON(w, http.StatusOK, groupResponses)
}

// GetByID handles GET /groups/{groupID}
// @Summary      Get group by ID
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /groups/{groupID} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	groupID, err := uuid.Parse(chi.URLParam(r, "groupID"))
	if err != nil {
		response.BadRequest(w, "Invalid group ID")
		return
	}

	group, err := h.service.GetByID(r.Context(), groupID, viewerID)
	if err != nil {
		h.writeError(w, err, "Failed to get group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// Update handles PUT /groups/{groupID}
// @Summary      Update group settings
// @Description  Update name, description, rules or AI persona. Admin only; access type is immutable.
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body UpdateGroupRequest true "Group updates"
// @Success      200 {object} response.APIResponse{data=GroupResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupID} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	var req UpdateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	group, err := h.service.Update(r.Context(), groupID, actorID, &req)
	if err != nil {
		h.writeError(w, err, "Failed to update group")
		return
	}

	response.JSON(w, http.StatusOK, group.ToResponse())
}

// Join handles POST /groups/{groupID}/join
// @Summary      Join an open group
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      201 {object} response.APIResponse{data=MemberResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupID}/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	member, err := h.service.Join(r.Context(), groupID, userID)
	if err != nil {
		h.writeError(w, err, "Failed to join group")
		return
	}

	response.JSON(w, http.StatusCreated, member.ToResponse())
}

// Leave handles POST /groups/{groupID}/leave
// @Summary      Leave a group
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupID}/leave [post]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	if err := h.service.Leave(r.Context(), groupID, userID); err != nil {
		h.writeError(w, err, "Failed to leave group")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Left group"})
}

// ListMembers handles GET /groups/{groupID}/members
// @Summary      List group members
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]MemberResponse}
// @Router       /groups/{groupID}/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(r.Context(), groupID, actorID)
	if err != nil {
		h.writeError(w, err, "Failed to list members")
		return
	}

	memberResponses := make([]*MemberResponse, len(members))
	for i, m := range members {
		memberResponses[i] = m.ToResponse()
	}

	response.JSON(w, http.StatusOK, memberResponses)
}

// UpdateMember handles PUT /groups/{groupID}/members/{userID}
// @Summary      Change a member's role
// @Description  Promote a member to admin or demote an admin to member. Admin only.
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        userID path string true "User ID"
// @Param        request body UpdateMemberRequest true "New role"
// @Success      200 {object} response.APIResponse{data=MemberResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupID}/members/{userID} [put]
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	var member *Member
	switch req.Role {
	case MemberRoleAdmin:
		member, err = h.service.PromoteMember(r.Context(), groupID, actorID, userID)
	case MemberRoleMember:
		member, err = h.service.DemoteMember(r.Context(), groupID, actorID, userID)
	default:
		response.BadRequest(w, "Invalid role")
		return
	}
	if err != nil {
		h.writeError(w, err, "Failed to update member")
		return
	}

	response.JSON(w, http.StatusOK, member.ToResponse())
}

// RemoveMember handles DELETE /groups/{groupID}/members/{userID}
// @Summary      Remove a member
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        userID path string true "User ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupID}/members/{userID} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	if err := h.service.RemoveMember(r.Context(), groupID, actorID, userID); err != nil {
		h.writeError(w, err, "Failed to remove member")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Member removed"})
}

// RequestAccess handles POST /groups/{groupID}/requests
// @Summary      Request access to an approval-required group
// @Tags         groups
// @Accept       json
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        request body RequestAccessRequest true "Optional message to admins"
// @Success      201 {object} response.APIResponse{data=AccessRequestResponse}
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupID}/requests [post]
func (h *Handler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	var req RequestAccessRequest
	if r.Body != nil {
		// Body is optional for access requests.
		json.NewDecoder(r.Body).Decode(&req)
	}

	request, err := h.service.RequestAccess(r.Context(), groupID, userID, req.Message)
	if err != nil {
		h.writeError(w, err, "Failed to request access")
		return
	}

	response.JSON(w, http.StatusCreated, request.ToResponse())
}

// ListPendingRequests handles GET /groups/{groupID}/requests
// @Summary      List pending access requests
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Success      200 {object} response.APIResponse{data=[]AccessRequestResponse}
// @Failure      403 {object} response.APIResponse
// @Router       /groups/{groupID}/requests [get]
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListPendingRequests(r.Context(), groupID, actorID)
	if err != nil {
		h.writeError(w, err, "Failed to list access requests")
		return
	}

	requestResponses := make([]*AccessRequestResponse, len(requests))
	for i, req := range requests {
		requestResponses[i] = req.ToResponse()
	}

	response.JSON(w, http.StatusOK, requestResponses)
}

// ApproveRequest handles POST /groups/{groupID}/requests/{requestID}/approve
// @Summary      Approve an access request
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        requestID path string true "Request ID"
// @Success      200 {object} response.APIResponse{data=AccessRequestResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupID}/requests/{requestID}/approve [post]
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.reviewRequest(w, r, h.service.ApproveRequest)
}

// RejectRequest handles POST /groups/{groupID}/requests/{requestID}/reject
// @Summary      Reject an access request
// @Tags         groups
// @Produce      json
// @Param        groupID path string true "Group ID"
// @Param        requestID path string true "Request ID"
// @Success      200 {object} response.APIResponse{data=AccessRequestResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /groups/{groupID}/requests/{requestID}/reject [post]
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.reviewRequest(w, r, h.service.RejectRequest)
}

type reviewFunc func(ctx context.Context, groupID, actorID, requestID uuid.UUID) (*AccessRequest, error)

func (h *Handler) reviewRequest(w http.ResponseWriter, r *http.Request, review reviewFunc) {
	actorID, groupID, ok := h.actorAndGroup(w, r)
	if !ok {
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		response.BadRequest(w, "Invalid request ID")
		return
	}

	request, err := review(r.Context(), groupID, actorID, requestID)
	if err != nil {
		h.writeError(w, err, "Failed to review access request")
		return
	}

	response.JSON(w, http.StatusOK, request.ToResponse())
}

// actorAndGroup extracts the authenticated user and the group path parameter
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

// writeError maps service errors to HTTP responses
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrGroupNotFound), errors.Is(err, ErrMemberNotFound), errors.Is(err, ErrRequestNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidAccessType):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrMemberAlreadyExists), errors.Is(err, ErrRequestPending),
		errors.Is(err, ErrRequestNotPending), errors.Is(err, ErrLastAdmin),
		errors.Is(err, ErrGroupOpen):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrApprovalRequired):
		response.Forbidden(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}
