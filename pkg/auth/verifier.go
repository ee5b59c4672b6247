package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoEmailClaim is returned for a valid token that carries no email
	ErrNoEmailClaim = errors.New("token has no email claim")

	// ErrVerificationDisabled is returned when no identity provider is configured
	ErrVerificationDisabled = errors.New("token verification is not configured")
)

// Claims are the verified facts taken from an identity token
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	ExpiresAt     time.Time
}

// Verifier checks a raw bearer token with the external identity provider
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Claims, error)
}

// VerifierFunc adapts a function to Verifier
type VerifierFunc func(ctx context.Context, rawToken string) (Claims, error)

// Verify implements Verifier
func (f VerifierFunc) Verify(ctx context.Context, rawToken string) (Claims, error) {
	return f(ctx, rawToken)
}

// RejectAll returns a Verifier that refuses every token, making every
// caller anonymous
func RejectAll() Verifier {
	return VerifierFunc(func(context.Context, string) (Claims, error) {
		return Claims{}, ErrVerificationDisabled
	})
}
