package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/storage"
)

// AuthMiddleware handles API key authentication of company dashboards
type AuthMiddleware struct {
	clients storage.ClientStore
	enabled bool
}

// NewAuthMiddleware creates new auth middleware. When disabled every request passes.
func NewAuthMiddleware(clients storage.ClientStore, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{clients: clients, enabled: enabled && clients != nil}
}

// Authenticate verifies API key from Authorization header
// Supports formats: "Bearer sk_xxx" or "sk_xxx" in Authorization header
// Also supports X-API-Key header
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := extractAPIKey(r)
		if apiKey == "" {
			respondError(w, http.StatusUnauthorized, "missing_api_key", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		client, err := m.clients.GetClientByApiKey(r.Context(), apiKey)
		if err != nil {
			slog.Error("failed to lookup api client", "error", err, "key_prefix", models.MaskKey(apiKey))
			respondError(w, http.StatusInternalServerError, "auth_error", "internal server error")
			return
		}

		if client == nil {
			slog.Warn("invalid api key attempt", "key_prefix", models.MaskKey(apiKey), "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusUnauthorized, "invalid_api_key", "the provided api key is not valid")
			return
		}

		if !client.IsActive {
			slog.Warn("inactive client attempt", "client", client.Name, "key_prefix", models.MaskKey(apiKey))
			respondError(w, http.StatusUnauthorized, "client_inactive", "this api key has been deactivated")
			return
		}

		// Update last_used_at asynchronously (don't block request)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.clients.UpdateClientLastUsed(ctx, apiKey); err != nil {
				slog.Error("failed to update client last_used_at", "error", err, "client", client.Name)
			}
		}()

		slog.Debug("authenticated request", "client", client.Name, "key_prefix", client.MaskedApiKey())

		next.ServeHTTP(w, r.WithContext(ContextWithClient(r.Context(), client)))
	})
}

// RequirePermission returns middleware that checks for specific permission
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !m.enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientFromContext(r.Context())
			if client == nil {
				respondError(w, http.StatusUnauthorized, "not_authenticated", "authentication required")
				return
			}

			if !client.HasPermission(permission) {
				slog.Warn("permission denied",
					"client", client.Name,
					"required", permission,
					"has", client.Permissions,
				)
				respondError(w, http.StatusForbidden, "permission_denied",
					"client does not have required permission: "+permission)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey extracts API key from request headers
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	return r.Header.Get("X-API-Key")
}
