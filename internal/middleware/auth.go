package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/pkg/apierror"
)

const (
	// TokenDataKey is the key for storing token data in request context.
	TokenDataKey contextKey = "token_data"

	// IdentityKey is the key for storing the caller identity in request context.
	IdentityKey contextKey = "identity"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID  string
	Service bool // authenticated with an API key rather than a session token
}

// TokenValidator resolves session tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.TokenData, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	TokenService TokenValidator
	APIKeys      []string
}

// NewAuthMiddleware creates an authentication middleware with injected dependencies.
// Users authenticate with X-Token. Trusted services use X-API-Key (or a bearer
// token) and act on behalf of the user named in X-User-ID.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// Admin endpoints with X-Login-Key are checked by the admin handler.
			if strings.HasPrefix(r.URL.Path, "/api/v1/admin") && r.Header.Get("X-Login-Key") != "" {
				next.ServeHTTP(w, r)
				return
			}

			// Try X-Token first (session tokens)
			token := r.Header.Get("X-Token")
			if token != "" && cfg.TokenService != nil {
				tokenData, err := cfg.TokenService.ValidateToken(r.Context(), token)
				if err != nil {
					writeError(w, apierror.Unauthorized("Invalid or expired token"))
					return
				}

				ctx := context.WithValue(r.Context(), TokenDataKey, tokenData)
				ctx = context.WithValue(ctx, IdentityKey, &Identity{UserID: tokenData.UserID})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Fall back to X-API-Key
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					apiKey = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if apiKey == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use X-Token or X-API-Key header."))
				return
			}
			if !isValidKey(apiKey, keys) {
				writeError(w, apierror.Unauthorized("Invalid API key"))
				return
			}

			identity := &Identity{
				UserID:  strings.TrimSpace(r.Header.Get("X-User-ID")),
				Service: true,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), IdentityKey, identity)))
		})
	}
}

func isPublicPath(path string) bool {
	switch path {
	case "/api/status", "/api/v1/health", "/api/v1/ready", "/api/v1/admin/login", "/metrics":
		return true
	}
	return false
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// isValidKey checks if the provided key is in the valid keys list.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// GetTokenDataFromContext retrieves token data from request context.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}

// GetIdentity retrieves the caller identity from request context.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(IdentityKey).(*Identity); ok {
		return id
	}
	return nil
}

// GetUserID returns the authenticated user ID, or "" when there is none.
func GetUserID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.UserID
	}
	return ""
}

// WithIdentity returns a context carrying identity. Used by tests and tooling.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
