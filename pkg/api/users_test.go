package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/policy"
	"github.com/sorumcars/sorum/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminStatus(t *testing.T, ts *testServer, email string) bool {
	t.Helper()
	rec := ts.do(t, http.MethodGet, "/users/"+email, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[AdminStatusResponse](t, rec).Admin
}

func TestUsers_PutIsIdempotentUpsert(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPut, "/users", "", UserRequest{Email: "new@sorum.io", Name: "First"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decode[storage.UpdateResult](t, rec).UpsertedCount)

	rec = ts.do(t, http.MethodPut, "/users", "", UserRequest{Email: "new@sorum.io", Name: "Second"})
	require.Equal(t, http.StatusOK, rec.Code)

	all, err := storage.Collect(ts.store.Collection(storage.CollectionUsers).Find(context.Background(), storage.ByEmail("new@sorum.io")))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Second", all[0][storage.FieldName])
}

func TestUsers_PutCannotSetRole(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPut, "/users", "", map[string]interface{}{
		"email":     userEmail,
		"name":      "Buyer",
		"role":      "admin",
		"mainAdmin": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	user, _ := ts.find(t, storage.CollectionUsers, storage.ByEmail(userEmail))
	assert.NotContains(t, user, storage.FieldRole)
	assert.NotContains(t, user, storage.FieldMainAdmin)
	assert.False(t, adminStatus(t, ts, userEmail))
}

func TestUsers_PutRequiresEmail(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPut, "/users", "", UserRequest{Name: "Nameless"})
	assertFailure(t, rec, http.StatusBadRequest, apperrors.KindInvalidArgument, "email is required")
}

func TestUsers_AdminStatus(t *testing.T) {
	ts := setupServer(t)

	assert.True(t, adminStatus(t, ts, mainAdminEmail))
	assert.True(t, adminStatus(t, ts, adminEmail))
	assert.False(t, adminStatus(t, ts, userEmail))
	assert.False(t, adminStatus(t, ts, "nobody@sorum.io"))
}

func TestUsers_ListAdmins(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodGet, "/users", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var emails []string
	for _, u := range decode[[]map[string]interface{}](t, rec) {
		emails = append(emails, u["email"].(string))
	}
	assert.ElementsMatch(t, []string{mainAdminEmail, adminEmail}, emails)
}

func TestUsers_GrantAdmin(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodPut, "/users/admin/"+userEmail, adminEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, adminStatus(t, ts, userEmail))

	rec = ts.do(t, http.MethodPut, "/users/admin/nobody@sorum.io", adminEmail, nil)
	assertFailure(t, rec, http.StatusNotFound, apperrors.KindNotFound, policy.MsgUserNotFound)
	_, found := ts.find(t, storage.CollectionUsers, storage.ByEmail("nobody@sorum.io"))
	assert.False(t, found, "granting never creates a user")

	// the promoted user can now pass the gate
	rec = ts.do(t, http.MethodGet, "/orders", userEmail, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsers_RevokeMainAdminIsPolicyViolation(t *testing.T) {
	ts := setupServer(t)

	for _, caller := range []string{adminEmail, mainAdminEmail} {
		rec := ts.do(t, http.MethodDelete, "/users/admin/"+mainAdminEmail, caller, nil)
		assertFailure(t, rec, http.StatusUnprocessableEntity, apperrors.KindPolicyViolation, policy.MsgMainAdmin)
	}

	user, _ := ts.find(t, storage.CollectionUsers, storage.ByEmail(mainAdminEmail))
	assert.Equal(t, storage.RoleAdmin, user[storage.FieldRole])
	assert.True(t, adminStatus(t, ts, mainAdminEmail))
}

func TestUsers_RevokeAdminRemovesOnlyRole(t *testing.T) {
	ts := setupServer(t)
	before, _ := ts.find(t, storage.CollectionUsers, storage.ByEmail(adminEmail))

	rec := ts.do(t, http.MethodDelete, "/users/admin/"+adminEmail, mainAdminEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	after, _ := ts.find(t, storage.CollectionUsers, storage.ByEmail(adminEmail))
	assert.Equal(t, storage.Without(before, storage.FieldRole), after)
	assert.False(t, adminStatus(t, ts, adminEmail))

	// the demoted admin is now turned away by the gate
	rec = ts.do(t, http.MethodGet, "/orders", adminEmail, nil)
	assertFailure(t, rec, http.StatusForbidden, apperrors.KindForbidden, "")
}

func TestUsers_RevokeAbsentUser(t *testing.T) {
	ts := setupServer(t)

	rec := ts.do(t, http.MethodDelete, "/users/admin/nobody@sorum.io", adminEmail, nil)
	assertFailure(t, rec, http.StatusNotFound, apperrors.KindNotFound, policy.MsgUserNotFound)
}
