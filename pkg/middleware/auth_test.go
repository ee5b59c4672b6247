package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/auth"
	"github.com/sorumcars/sorum/pkg/httputil"
	"github.com/sorumcars/sorum/pkg/rbac"
	"github.com/sorumcars/sorum/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenVerifier accepts tokens of the form "ok:<email>"
var tokenVerifier = auth.VerifierFunc(func(ctx context.Context, raw string) (auth.Claims, error) {
	if len(raw) > 3 && raw[:3] == "ok:" {
		return auth.Claims{Email: raw[3:], EmailVerified: true}, nil
	}
	return auth.Claims{}, errors.New("signature mismatch")
})

func TestAuthMiddleware_Handler(t *testing.T) {
	m := NewAuthMiddleware(auth.NewResolver(tokenVerifier, nil))

	tests := []struct {
		name   string
		header string
		want   auth.Identity
	}{
		{"no header", "", auth.Anonymous()},
		{"malformed header", "Token ok:a@x.io", auth.Anonymous()},
		{"failed verification", "Bearer forged", auth.Anonymous()},
		{"verified", "Bearer ok:a@x.io", auth.Authenticated("a@x.io")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got auth.Identity
			called := false
			handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got = IdentityFrom(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/cars", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			require.True(t, called, "identity resolution must never reject")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityFrom_Default(t *testing.T) {
	assert.True(t, IdentityFrom(context.Background()).IsAnonymous())
}

func TestRequireAdmin(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	users := store.Collection(storage.CollectionUsers)
	_, err := users.InsertOne(ctx, storage.Document{storage.FieldEmail: "admin@x.io", storage.FieldRole: storage.RoleAdmin})
	require.NoError(t, err)
	_, err = users.InsertOne(ctx, storage.Document{storage.FieldEmail: "user@x.io"})
	require.NoError(t, err)

	gate := rbac.NewGate(users)
	chain := func(next http.Handler) http.Handler {
		return NewAuthMiddleware(auth.NewResolver(tokenVerifier, nil)).Handler(RequireAdmin(gate)(next))
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantKind   apperrors.Kind
	}{
		{"anonymous", "", http.StatusUnauthorized, apperrors.KindUnauthenticated},
		{"unverifiable token", "Bearer forged", http.StatusUnauthorized, apperrors.KindUnauthenticated},
		{"non-admin", "Bearer ok:user@x.io", http.StatusForbidden, apperrors.KindForbidden},
		{"unknown account", "Bearer ok:ghost@x.io", http.StatusForbidden, apperrors.KindForbidden},
		{"admin", "Bearer ok:admin@x.io", http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusNoContent)
			}))

			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantKind == "" {
				assert.True(t, called)
				return
			}
			assert.False(t, called, "denied request must not reach the handler")

			var resp httputil.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantKind, resp.Error)
		})
	}
}
