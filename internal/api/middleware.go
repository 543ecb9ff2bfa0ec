package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/homzhub/ticket-engine/internal/auth"
	"github.com/homzhub/ticket-engine/internal/storage"
)

// AuthMiddleware authenticates requests from API clients and portal users
type AuthMiddleware struct {
	repo      storage.Repository
	jwtSecret string
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(repo storage.Repository, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{repo: repo, jwtSecret: jwtSecret}
}

// Authenticate verifies the caller's credential from the Authorization header.
// Keys with the "sk_" prefix are service-to-service API keys looked up in
// storage; anything else is treated as a portal-user JWT.
// Also supports X-API-Key header for API clients.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing credentials", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		if strings.HasPrefix(token, "sk_") {
			m.authenticateClient(w, r, next, token)
			return
		}

		m.authenticateUser(w, r, next, token)
	})
}

func (m *AuthMiddleware) authenticateClient(w http.ResponseWriter, r *http.Request, next http.Handler, apiKey string) {
	client, err := m.repo.GetClientByApiKey(r.Context(), apiKey)
	if err != nil {
		slog.Error("failed to lookup api client", "error", err, "key_prefix", maskKey(apiKey))
		writeAuthError(w, http.StatusInternalServerError, "authentication error", "internal server error")
		return
	}

	if client == nil {
		slog.Warn("invalid api key attempt", "key_prefix", maskKey(apiKey), "remote_addr", r.RemoteAddr)
		writeAuthError(w, http.StatusUnauthorized, "invalid api key", "the provided api key is not valid")
		return
	}

	if !client.IsActive {
		slog.Warn("inactive client attempt", "client", client.Name, "key_prefix", maskKey(apiKey))
		writeAuthError(w, http.StatusUnauthorized, "client inactive", "this api key has been deactivated")
		return
	}

	// Update last_used_at asynchronously (don't block request)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.repo.UpdateClientLastUsed(ctx, apiKey); err != nil {
			slog.Error("failed to update client last_used_at", "error", err, "client", client.Name)
		}
	}()

	slog.Debug("authenticated api client", "client", client.Name, "key_prefix", client.MaskedApiKey())

	ctx := ContextWithPrincipal(r.Context(), &Principal{
		Kind:        "api_client",
		Subject:     client.Name,
		Permissions: client.Permissions,
	})
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (m *AuthMiddleware) authenticateUser(w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	claims, err := auth.ParseJWT(m.jwtSecret, token)
	if err != nil {
		slog.Warn("invalid token attempt", "error", err, "remote_addr", r.RemoteAddr)
		writeAuthError(w, http.StatusUnauthorized, "invalid token", "the provided token is not valid")
		return
	}

	user, err := m.repo.GetUser(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("failed to lookup user", "error", err, "user_id", claims.UserID)
		writeAuthError(w, http.StatusInternalServerError, "authentication error", "internal server error")
		return
	}

	if user == nil {
		writeAuthError(w, http.StatusUnauthorized, "invalid token", "token subject no longer exists")
		return
	}

	slog.Debug("authenticated user", "user_id", user.ID, "role", user.Role)

	ctx := ContextWithPrincipal(r.Context(), &Principal{
		Kind:        "user",
		Subject:     user.ID,
		UserID:      user.ID,
		Permissions: user.Permissions(),
	})
	next.ServeHTTP(w, r.WithContext(ctx))
}

// RequirePermission returns middleware that checks for specific permission
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated", "authentication required")
				return
			}

			if !principal.HasPermission(permission) {
				slog.Warn("permission denied",
					"subject", principal.Subject,
					"required", permission,
					"has", principal.Permissions,
				)
				writeAuthError(w, http.StatusForbidden, "permission denied",
					"caller does not have required permission: "+permission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the credential from request headers
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	return r.Header.Get("X-API-Key")
}

// maskKey returns first 8 chars of key for safe logging
func maskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}

// AuthError represents an authentication error response
type AuthError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeAuthError writes JSON error response
func writeAuthError(w http.ResponseWriter, status int, error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AuthError{
		Error:   error,
		Message: message,
	})
}
