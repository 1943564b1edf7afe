package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"consign-review-api/internal/model"
	"consign-review-api/internal/service"
	"consign-review-api/pkg/apierror"

	log "github.com/sirupsen/logrus"
)

// TokenDataKey is the key for storing token data in request context.
const TokenDataKey contextKey = "token_data"

// TokenValidator resolves a session token to its data.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenData, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Tokens TokenValidator
	// PublicPaths are served without a token.
	PublicPaths []string
}

// NewAuthMiddleware creates an authentication middleware with injected dependencies.
// Tokens are read from X-Token or an Authorization bearer header.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := TokenFromRequest(r)
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or Authorization: Bearer header."))
				return
			}

			tokenData, err := cfg.Tokens.ValidateToken(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrTokenNotFound) && !errors.Is(err, service.ErrInvalidToken) {
					log.WithField("component", "Auth").WithError(err).Error("Token lookup failed")
				}
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), TokenDataKey, tokenData)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only for the given roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data := GetTokenDataFromContext(r.Context())
			if data == nil {
				writeError(w, apierror.Unauthorized(""))
				return
			}
			for _, role := range roles {
				if data.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, apierror.Forbidden("Your role cannot access this resource"))
		})
	}
}

// TokenFromRequest extracts the session token from the request headers.
func TokenFromRequest(r *http.Request) string {
	if token := r.Header.Get("X-Token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetTokenDataFromContext retrieves token data from request context.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}
