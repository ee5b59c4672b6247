package middleware

import (
	"context"
	"net/http"

	"github.com/sorumcars/sorum/pkg/auth"
	"github.com/sorumcars/sorum/pkg/contextkeys"
	"github.com/sorumcars/sorum/pkg/httputil"
	"github.com/sorumcars/sorum/pkg/observability"
)

// IdentityResolver resolves an Authorization header value
type IdentityResolver interface {
	Resolve(ctx context.Context, header string) auth.Identity
}

// Authorizer decides whether an identity may use an admin route
type Authorizer interface {
	Authorize(ctx context.Context, id auth.Identity) error
}

// AuthMiddleware attaches the caller identity to every request. It never
// rejects: an absent or unverifiable credential yields the anonymous identity.
type AuthMiddleware struct {
	resolver IdentityResolver
}

// NewAuthMiddleware creates a new identity middleware
func NewAuthMiddleware(resolver IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handler wraps an HTTP handler with identity resolution
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))

		ctx := contextkeys.WithIdentity(r.Context(), id)
		if email, ok := id.Email(); ok {
			ctx = observability.WithLogger(ctx, observability.FromContext(ctx).WithField("caller", email))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity stored by AuthMiddleware. A context
// that never passed through it is anonymous.
func IdentityFrom(ctx context.Context) auth.Identity {
	id, ok := ctx.Value(contextkeys.IdentityKey).(auth.Identity)
	if !ok {
		return auth.Anonymous()
	}
	return id
}

// RequireAdmin admits the request only when gate authorizes the caller.
// Denials are written as Unauthenticated or Forbidden results and the
// wrapped handler never runs.
func RequireAdmin(gate Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.Authorize(r.Context(), IdentityFrom(r.Context())); err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
