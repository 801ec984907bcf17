package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	appErr "github.com/taskhall/engine/pkg/errors"
)

type userKeyType string

const UserIDKey userKeyType = "user_id"

// SessionResolver turns a bearer token into the acting user's id.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
}

// Auth requires a valid bearer token and stores the resolved user id in the
// request context.
func Auth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				reject(w, http.StatusUnauthorized, appErr.CodeUnauthenticated, "missing bearer token")
				return
			}
			userID, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				if appErr.CodeOf(err).Kind() == appErr.KindUnavailable {
					reject(w, http.StatusServiceUnavailable, appErr.CodeUnavailable, "session store unavailable")
					return
				}
				reject(w, http.StatusUnauthorized, appErr.CodeUnauthenticated, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	ah := r.Header.Get("Authorization")
	if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(ah[len("Bearer "):])
	return token, token != ""
}

// GetUserID returns the authenticated user id, or uuid.Nil outside Auth.
func GetUserID(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithUserID returns ctx carrying id as the authenticated user.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// OptionalAuth attaches the user id when a valid bearer token is present
// and lets the request through either way.
func OptionalAuth(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := BearerToken(r); ok {
				if userID, err := sessions.Resolve(r.Context(), token); err == nil {
					r = r.WithContext(WithUserID(r.Context(), userID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
