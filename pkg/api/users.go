package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/httputil"
	"github.com/sorumcars/sorum/pkg/policy"
	"github.com/sorumcars/sorum/pkg/rbac"
	"github.com/sorumcars/sorum/pkg/storage"
)

// UserHandlers serves accounts and admin management
type UserHandlers struct {
	users  storage.Collection
	gate   *rbac.Gate
	guards *policy.Guards
	admin  adminWrapper
}

// NewUserHandlers creates the user handlers
func NewUserHandlers(store storage.Store, gate *rbac.Gate, guards *policy.Guards, admin func(http.Handler) http.Handler) *UserHandlers {
	return &UserHandlers{
		users:  store.Collection(storage.CollectionUsers),
		gate:   gate,
		guards: guards,
		admin:  admin,
	}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.putUser).Methods("PUT")
	router.Handle("/users/admin/{email}", h.admin.only(h.grantAdmin)).Methods("PUT")
	router.Handle("/users/admin/{email}", h.admin.only(h.revokeAdmin)).Methods("DELETE")
	router.HandleFunc("/users/{email}", h.getAdminStatus).Methods("GET")
	router.HandleFunc("/users", h.listAdmins).Methods("GET")
}

// putUser handles PUT /users. Only email and name are written, so a
// caller can never set their own role.
func (h *UserHandlers) putUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, r, req.Email, storage.FieldEmail) {
		return
	}

	set := storage.Document{storage.FieldEmail: req.Email}
	if req.Name != "" {
		set[storage.FieldName] = req.Name
	}

	result, err := h.users.UpdateOne(r.Context(), storage.ByEmail(req.Email), set, true)
	if err != nil {
		err = apperrors.Internal("failed to save user", err)
	}
	httputil.WriteJSONOrError(w, r, result, err)
}

// grantAdmin handles PUT /users/admin/{email}
func (h *UserHandlers) grantAdmin(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	result, err := h.guards.GrantAdmin(r.Context(), email)
	httputil.WriteJSONOrError(w, r, result, err)
}

// revokeAdmin handles DELETE /users/admin/{email}
func (h *UserHandlers) revokeAdmin(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	result, err := h.guards.RevokeAdmin(r.Context(), email)
	httputil.WriteJSONOrError(w, r, result, err)
}

// getAdminStatus handles GET /users/{email}
func (h *UserHandlers) getAdminStatus(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	admin, err := h.gate.IsAdmin(r.Context(), email)
	if err != nil {
		httputil.WriteAppError(w, r, apperrors.Internal("failed to load user", err))
		return
	}
	httputil.WriteSuccess(w, AdminStatusResponse{Admin: admin})
}

// listAdmins handles GET /users
func (h *UserHandlers) listAdmins(w http.ResponseWriter, r *http.Request) {
	filter := storage.Filter{storage.FieldRole: storage.RoleAdmin}
	admins, err := storage.Collect(h.users.Find(r.Context(), filter))
	if err != nil {
		err = apperrors.Internal("failed to list admins", err)
	}
	httputil.WriteJSONOrError(w, r, admins, err)
}
