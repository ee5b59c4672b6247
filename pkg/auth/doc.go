// Package auth resolves the caller identity of a request.
//
// # Overview
//
// Every request carries an optional "Authorization: Bearer <token>" header.
// The Resolver verifies the token with the external identity provider and
// yields an Identity, which is either anonymous or a verified email:
//
//	resolver := auth.NewResolver(verifier, logger)
//	id := resolver.Resolve(ctx, r.Header.Get("Authorization"))
//	if email, ok := id.Email(); ok {
//		// verified caller
//	}
//
// Resolution fails open. A missing header, a header that is not a bearer
// credential, an expired token or a bad signature all produce Anonymous.
// Rejecting anonymous callers is the job of the role gate in package rbac.
//
// # Verifiers
//
// OIDCVerifier checks ID tokens with github.com/coreos/go-oidc. Issuer keys
// are discovered at startup with NewOIDCVerifier, or fixed with
// NewStaticOIDCVerifier. CachingVerifier wraps any Verifier with an
// expiring LRU keyed by token digest. RejectAll is used when no issuer is
// configured, so every caller is anonymous.
package auth
