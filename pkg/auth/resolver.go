package auth

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// Resolver turns an Authorization header into an Identity. It never fails:
// a missing, malformed or unverifiable credential resolves to Anonymous and
// the reason is logged at debug level.
type Resolver struct {
	verifier Verifier
	log      logrus.FieldLogger
}

// NewResolver creates a resolver backed by verifier
func NewResolver(verifier Verifier, log logrus.FieldLogger) *Resolver {
	if verifier == nil {
		verifier = RejectAll()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{verifier: verifier, log: log}
}

// Resolve resolves the raw Authorization header value
func (r *Resolver) Resolve(ctx context.Context, header string) Identity {
	if header == "" {
		return Anonymous()
	}

	token, ok := BearerToken(header)
	if !ok {
		r.log.Debug("ignoring malformed authorization header")
		return Anonymous()
	}

	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		r.log.WithError(err).Debug("token verification failed, continuing as anonymous")
		return Anonymous()
	}

	return Authenticated(claims.Email)
}

// BearerToken extracts the token from a "Bearer <token>" header value
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
