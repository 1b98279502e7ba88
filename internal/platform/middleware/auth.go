package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"cartsync/internal/identity/session"
	"cartsync/pkg/domain"
)

// SessionResolver validates a bearer token and returns its live session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// Context keys for storing authenticated identity information.
type contextKeyIdentityID struct{}
type contextKeySessionID struct{}

var (
	ContextKeyIdentityID = contextKeyIdentityID{}
	ContextKeySessionID  = contextKeySessionID{}
)

// GetIdentityID retrieves the authenticated identity id from the context.
func GetIdentityID(ctx context.Context) domain.IdentityID {
	id, ok := ctx.Value(ContextKeyIdentityID).(domain.IdentityID)
	if !ok {
		return ""
	}
	return id
}

// GetSessionID retrieves the session id from the context.
func GetSessionID(ctx context.Context) domain.SessionID {
	id, ok := ctx.Value(ContextKeySessionID).(domain.SessionID)
	if !ok {
		return domain.SessionID{}
	}
	return id
}

// RequireAuth rejects requests without a valid bearer token whose session is
// still live, and stores the identity and session ids in the context.
func RequireAuth(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			sess, err := resolver.Resolve(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyIdentityID, sess.IdentityID)
			ctx = context.WithValue(ctx, ContextKeySessionID, sess.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
