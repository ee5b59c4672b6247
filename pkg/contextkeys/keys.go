// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that key
// usage stays discoverable and collision free.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithIdentity(ctx, auth.Authenticated(email))
//	id, _ := ctx.Value(contextkeys.IdentityKey).(auth.Identity)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains auth.Identity
	// Set by: middleware.Identity (pkg/middleware/identity.go)
	// Required by: admin routes through the role gate
	// Type: auth.Identity
	IdentityKey Key = "identity"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error responses
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *logrus.Entry
	// Set by: httputil.RequestIDMiddleware
	// Used by: Handlers that log with request context
	// Type: *logrus.Entry
	LoggerKey Key = "logger"
)

// WithIdentity adds the resolved caller identity to the context
func WithIdentity(ctx context.Context, identity interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
