package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sentinel-ops/lookup-broker/internal/auth"
)

// Authenticator provides a middleware for JWT authentication.
// With an empty secret it passes every request through untouched and
// identity is left to the upstream session layer.
func Authenticator(logger *zap.Logger, jwtSecret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if jwtSecret == "" {
			return next
		}
		fn := func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header")
				writeAuthError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			// The header should be in the format "Bearer <token>".
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				logger.Warn("Invalid Authorization header format")
				writeAuthError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims, err := auth.ValidateJWT(parts[1], jwtSecret)
			if err != nil {
				logger.Warn("Invalid JWT token", zap.Error(err))
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		}
		return http.HandlerFunc(fn)
	}
}

// RequireRole rejects authenticated callers whose role differs from role.
// Requests without claims (authentication disabled) pass through.
func RequireRole(logger *zap.Logger, role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if ok && claims.Role != role {
				logger.Warn("Caller lacks required role",
					zap.String("subject", claims.Identity()),
					zap.String("required_role", role))
				writeAuthError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
