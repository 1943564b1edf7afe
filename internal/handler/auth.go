package handler

import (
	"context"
	"net/http"
	"strings"

	"consign-review-api/internal/middleware"
	"consign-review-api/internal/model"
	"consign-review-api/internal/remote"
	"consign-review-api/internal/service"
	"consign-review-api/internal/workflow"
	"consign-review-api/pkg/apierror"
	"consign-review-api/pkg/response"
)

// Authenticator verifies operator credentials against the platform.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*remote.LoginResult, error)
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	tokenService *service.TokenService
	auth         Authenticator
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(tokenService *service.TokenService, auth Authenticator) *AuthHandler {
	return &AuthHandler{
		tokenService: tokenService,
		auth:         auth,
	}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// TokenResponse represents the response for token generation.
type TokenResponse struct {
	Token     string     `json:"token"`
	ExpiresIn int        `json:"expires_in"`
	Role      model.Role `json:"role"`
	ShopID    string     `json:"shop_id,omitempty"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if apiErr := decode(r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	result, err := h.auth.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if remote.IsClientError(err) {
			response.Error(w, apierror.Unauthorized("Invalid email or password"))
			return
		}
		writeErr(w, r, workflow.FromRemote("login failed", err))
		return
	}

	switch result.Role {
	case model.RoleAdmin:
	case model.RoleStaff:
		if result.ShopID == "" {
			response.Error(w, apierror.Forbidden("Staff account is not assigned to a shop"))
			return
		}
	default:
		response.Error(w, apierror.Forbidden("Only admin and staff accounts can review consignments"))
		return
	}

	token, err := h.tokenService.GenerateToken(r.Context(), model.TokenData{
		AccountID:   result.AccountID,
		Email:       result.Email,
		Role:        result.Role,
		ShopID:      result.ShopID,
		RemoteToken: result.AccessToken,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}

	response.OK(w, TokenResponse{
		Token:     token,
		ExpiresIn: int(h.tokenService.TTL().Seconds()),
		Role:      result.Role,
		ShopID:    result.ShopID,
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
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

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header required"))
		return
	}

	if err := h.tokenService.RefreshToken(r.Context(), token); err != nil {
		response.Error(w, apierror.Unauthorized("Invalid or expired token"))
		return
	}

	response.OK(w, map[string]interface{}{
		"status":     "refreshed",
		"expires_in": int(h.tokenService.TTL().Seconds()),
	})
}
