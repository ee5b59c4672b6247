package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingVerifier remembers successful verifications so repeated requests
// with the same token skip signature checks. Failures are never cached and
// an entry is never served past the token's own expiry.
type CachingVerifier struct {
	next  Verifier
	cache *expirable.LRU[string, Claims]
	now   func() time.Time
}

// NewCachingVerifier wraps next with a bounded cache of size entries, each
// kept at most ttl
func NewCachingVerifier(next Verifier, size int, ttl time.Duration) *CachingVerifier {
	if size <= 0 {
		size = 1024
	}
	return &CachingVerifier{
		next:  next,
		cache: expirable.NewLRU[string, Claims](size, nil, ttl),
		now:   time.Now,
	}
}

// Verify implements Verifier
func (c *CachingVerifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	key := tokenKey(rawToken)

	if claims, ok := c.cache.Get(key); ok {
		if claims.ExpiresAt.IsZero() || c.now().Before(claims.ExpiresAt) {
			return claims, nil
		}
		c.cache.Remove(key)
	}

	claims, err := c.next.Verify(ctx, rawToken)
	if err != nil {
		return Claims{}, err
	}
	c.cache.Add(key, claims)
	return claims, nil
}

// Len returns the number of cached verifications
func (c *CachingVerifier) Len() int {
	return c.cache.Len()
}

// tokens are keyed by digest so raw credentials are not retained
func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
