package handler

import (
	"errors"
	"net/http"
	"strings"

	"packvault-autosell-api/internal/middleware"
	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/service"
	"packvault-autosell-api/pkg/apierror"
	"packvault-autosell-api/pkg/response"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	tokenService *service.TokenService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokenService *service.TokenService) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
	}
}

// TokenRequest represents the request body for token generation.
type TokenRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// GenerateToken handles POST /auth/token. Only trusted services (API key)
// may mint session tokens for users.
func (h *AuthHandler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetIdentity(r.Context()); id == nil || !id.Service {
		response.Error(w, apierror.Forbidden("token issuance requires an API key"))
		return
	}

	var req TokenRequest
	if apiErr := response.DecodeJSON(w, r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		response.Error(w, apierror.BadRequest("user_id is required"))
		return
	}

	token, err := h.tokenService.GenerateToken(r.Context(), model.TokenData{
		UserID:   req.UserID,
		Username: req.Username,
	})
	if err != nil {
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		ExpiresIn: int(service.TokenTTL.Seconds()),
	})
}

// RevokeToken handles POST /auth/revoke
func (h *AuthHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RevokeToken(r.Context(), token); err != nil {
		response.Error(w, apierror.InternalError("failed to revoke token"))
		return
	}

	response.OK(w, map[string]string{"status": "revoked"})
}

// RefreshToken handles POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	data, err := h.tokenService.RefreshToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrTokenExpired) {
			response.Error(w, apierror.Unauthorized("token not found or expired"))
			return
		}
		response.Error(w, apierror.InternalError("failed to refresh token"))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_at": data.ExpiresAt,
		"expires_in": int(service.TokenTTL.Seconds()),
	})
}
