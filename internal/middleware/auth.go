package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/careops/hospital-backend/internal/models"
	"github.com/careops/hospital-backend/internal/session"
)

type contextKey string

const userContextKey contextKey = "user"

// UserContext is the verified identity attached to a request.
type UserContext struct {
	UserID uuid.UUID
	Role   models.Role
}

// Auth verifies the bearer access token and attaches the caller's identity
// to the request context. Verification is pure: no session-table lookup.
func Auth(sessions *session.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := sessions.Verify(raw)
			if err != nil {
				log.Debug().Err(err).Msg("Access token rejected")
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, UserContext{
				UserID: claims.UserID,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is not in the allowed set.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}
			if !allowed[user.Role] {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetUser extracts the verified identity from context
func GetUser(ctx context.Context) (UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(UserContext)
	return user, ok
}

// WithUser returns a context carrying the given identity. Used by tests.
func WithUser(ctx context.Context, user UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
