package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tertulia/pkg/response"
)

// ProfileEnsurer creates a profile row for a user on first authentication
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, userID uuid.UUID, displayName string) error
}

// Handler handles HTTP requests for token issuance.
// It bridges the external identity provider during development: a real
// deployment puts the provider's tokens straight into the auth middleware.
type Handler struct {
	jwt       *JWTService
	profiles  ProfileEnsurer
	devIssuer bool
}

// NewHandler creates a new auth handler
func NewHandler(jwt *JWTService, profiles ProfileEnsurer, devIssuer bool) *Handler {
	return &Handler{jwt: jwt, profiles: profiles, devIssuer: devIssuer}
}

// Routes returns the router for auth endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/token", h.IssueToken)
	r.Post("/refresh", h.Refresh)

	return r
}

// TokenRequest represents the request to issue a dev token pair
type TokenRequest struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=60"`
}

// RefreshRequest represents the request to refresh an access token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse represents an issued token pair
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// IssueToken handles POST /auth/token
// @Summary      Issue a token pair (development only)
// @Description  Issue an access/refresh token pair for a user ID
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body TokenRequest true "Token request"
// @Success      200 {object} response.APIResponse{data=TokenResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /auth/token [post]
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if !h.devIssuer {
		response.NotFound(w, "Token issuance is handled by the identity provider")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}
	if req.DisplayName == "" {
		response.BadRequest(w, "Display name is required")
		return
	}

	if err := h.profiles.EnsureProfile(r.Context(), userID, req.DisplayName); err != nil {
		response.InternalError(w, "Failed to prepare profile")
		return
	}

	access, refresh, expiresAt, err := h.jwt.GenerateTokenPair(userID, req.DisplayName)
	if err != nil {
		response.InternalError(w, "Failed to issue tokens")
		return
	}

	response.JSON(w, http.StatusOK, &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	})
}

// Refresh handles POST /auth/refresh
// @Summary      Refresh an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest true "Refresh request"
// @Success      200 {object} response.APIResponse{data=TokenResponse}
// @Failure      401 {object} response.APIResponse
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	userID, displayName, err := h.jwt.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		response.Unauthorized(w, "Invalid refresh token")
		return
	}

	access, refresh, expiresAt, err := h.jwt.GenerateTokenPair(userID, displayName)
	if err != nil {
		response.InternalError(w, "Failed to issue tokens")
		return
	}

	response.JSON(w, http.StatusOK, &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	})
}
