package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"linkguard/auth"
	"linkguard/model"

	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	ctxUserID    contextKey = "userID"
	ctxUserEmail contextKey = "userEmail"
	ctxUserRole  contextKey = "userRole"
)

// UserAuth is a middleware that validates user JWT tokens
type UserAuth struct {
	jwtManager *auth.JWTManager
}

// NewUserAuth creates a new user authentication middleware
func NewUserAuth(jwtManager *auth.JWTManager) *UserAuth {
	return &UserAuth{
		jwtManager: jwtManager,
	}
}

// Protect returns a middleware function that requires authentication
func (ua *UserAuth) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Missing authorization token",
			})
			return
		}

		// Check Bearer prefix
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Invalid authorization header format. Use: Bearer <token>",
			})
			return
		}

		claims, err := ua.jwtManager.ValidateToken(parts[1])
		if err != nil {
			log.Warn().Err(err).Msg("Invalid token")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Invalid or expired token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxUserEmail, claims.Email)
		ctx = context.WithValue(ctx, ctxUserRole, claims.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin returns a middleware that only passes admin users.
// It must be stacked inside Protect so the claims are in context.
func (ua *UserAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserRole(r) != model.RoleAdmin {
			log.Warn().
				Str("path", r.URL.Path).
				Str("user_id", GetUserID(r)).
				Msg("Admin route accessed by non-admin user")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Admin privileges required",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts user ID from request context
func GetUserID(r *http.Request) string {
	userID, ok := r.Context().Value(ctxUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUserEmail extracts user email from request context
func GetUserEmail(r *http.Request) string {
	email, ok := r.Context().Value(ctxUserEmail).(string)
	if !ok {
		return ""
	}
	return email
}

// GetUserRole extracts the user role from request context
func GetUserRole(r *http.Request) model.Role {
	role, ok := r.Context().Value(ctxUserRole).(model.Role)
	if !ok {
		return ""
	}
	return role
}
