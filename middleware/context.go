package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/cluster-policy-builder/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// UserKey is the context key for the caller identity
	UserKey contextKey = "user"

	// SessionIDKey is the context key for the editor session id
	SessionIDKey contextKey = "session_id"
)

// GetRequestIDFromContext retrieves the request ID from context. Ids set by
// chi's RequestID middleware are used when none was stored explicitly.
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetUserFromContext retrieves the caller from context, or Anonymous
func GetUserFromContext(ctx context.Context) models.User {
	if val := ctx.Value(UserKey); val != nil {
		if user, ok := val.(models.User); ok {
			return user
		}
	}
	return models.Anonymous
}

// WithUser adds the caller to the context
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetSessionIDFromContext retrieves the session id from context
func GetSessionIDFromContext(ctx context.Context) string {
	if val := ctx.Value(SessionIDKey); val != nil {
		if sessionID, ok := val.(string); ok {
			return sessionID
		}
	}
	return ""
}

// WithSessionID adds the session id to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}
