package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/httputil"
	"github.com/sorumcars/sorum/pkg/storage"
)

// OrderHandlers serves orders. Placing, reading and deleting an order is
// open to anyone; listing every order and changing status is admin-only.
type OrderHandlers struct {
	orders storage.Collection
	admin  adminWrapper
}

// NewOrderHandlers creates the order handlers
func NewOrderHandlers(store storage.Store, admin func(http.Handler) http.Handler) *OrderHandlers {
	return &OrderHandlers{
		orders: store.Collection(storage.CollectionOrders),
		admin:  admin,
	}
}

// RegisterRoutes registers order routes
func (h *OrderHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/orders", h.createOrder).Methods("POST")
	router.Handle("/orders", h.admin.only(h.listOrders)).Methods("GET")
	router.HandleFunc("/order/{id}", h.getOrder).Methods("GET")
	router.HandleFunc("/orders/{email}", h.listOrdersByEmail).Methods("GET")
	router.Handle("/updateOrderStatus", h.admin.only(h.updateOrderStatus)).Methods("PATCH")
	router.HandleFunc("/orders/{id}", h.deleteOrder).Methods("DELETE")
}

// createOrder handles POST /orders?email=. The client's _id names the
// ordered car and is kept as uniqueId; the store assigns the order's own id.
func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	email := httputil.ParseQueryString(r, storage.FieldEmail, "")
	if !httputil.RequireNonEmpty(w, r, email, storage.FieldEmail) {
		return
	}

	body, ok := httputil.ParseDocumentOrError(w, r)
	if !ok {
		return
	}

	order := storage.Without(body, storage.FieldID)
	order[storage.FieldEmail] = email
	if ref, ok := body[storage.FieldID]; ok {
		order[storage.FieldUniqueID] = ref
	}

	result, err := h.orders.InsertOne(r.Context(), order)
	if err != nil {
		err = apperrors.Internal("failed to place order", err)
	}
	httputil.WriteJSONOrError(w, r, result, err)
}

// listOrders handles GET /orders
func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := storage.Collect(h.orders.Find(r.Context(), storage.Filter{}))
	if err != nil {
		err = apperrors.Internal("failed to list orders", err)
	}
	httputil.WriteJSONOrError(w, r, orders, err)
}

// getOrder handles GET /order/{id}
func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id", MsgInvalidOrderID)
	if !ok {
		return
	}

	order, found, err := h.orders.FindOne(r.Context(), storage.ByID(id))
	switch {
	case err != nil:
		httputil.WriteAppError(w, r, apperrors.Internal("failed to load order", err))
	case !found:
		httputil.WriteAppError(w, r, apperrors.NotFound(MsgOrderNotFound))
	default:
		httputil.WriteSuccess(w, order)
	}
}

// listOrdersByEmail handles GET /orders/{email}
func (h *OrderHandlers) listOrdersByEmail(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	orders, err := storage.Collect(h.orders.Find(r.Context(), storage.ByEmail(email)))
	if err != nil {
		err = apperrors.Internal("failed to list orders", err)
	}
	httputil.WriteJSONOrError(w, r, orders, err)
}

// updateOrderStatus handles PATCH /updateOrderStatus
func (h *OrderHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	id, ok := httputil.ParseIDOrError(w, r, req.ID, MsgInvalidOrderID)
	if !ok {
		return
	}
	if req.Status == "" {
		httputil.WriteAppError(w, r, apperrors.InvalidArgument(MsgStatusRequired))
		return
	}

	set := storage.Document{storage.FieldStatus: req.Status}
	result, err := h.orders.UpdateOne(r.Context(), storage.ByID(id), set, false)
	switch {
	case err != nil:
		httputil.WriteAppError(w, r, apperrors.Internal("failed to update order", err))
	case result.MatchedCount == 0:
		httputil.WriteAppError(w, r, apperrors.NotFound(MsgOrderNotFound))
	default:
		httputil.WriteSuccess(w, result)
	}
}

// deleteOrder handles DELETE /orders/{id}. Deleting an absent order
// reports deletedCount 0.
func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id", MsgInvalidOrderID)
	if !ok {
		return
	}

	result, err := h.orders.DeleteOne(r.Context(), storage.ByID(id))
	if err != nil {
		err = apperrors.Internal("failed to delete order", err)
	}
	httputil.WriteJSONOrError(w, r, result, err)
}
