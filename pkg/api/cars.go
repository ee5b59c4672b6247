package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/httputil"
	"github.com/sorumcars/sorum/pkg/policy"
	"github.com/sorumcars/sorum/pkg/storage"
)

// HomeCarsLimit is how many catalog entries the landing page shows
const HomeCarsLimit = 6

// CarHandlers serves the catalog
type CarHandlers struct {
	cars   storage.Collection
	guards *policy.Guards
	admin  adminWrapper
}

// NewCarHandlers creates the catalog handlers
func NewCarHandlers(store storage.Store, guards *policy.Guards, admin func(http.Handler) http.Handler) *CarHandlers {
	return &CarHandlers{
		cars:   store.Collection(storage.CollectionCars),
		guards: guards,
		admin:  admin,
	}
}

// RegisterRoutes registers catalog routes
func (h *CarHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/carshome", h.listHomeCars).Methods("GET")
	router.HandleFunc("/cars", h.listCars).Methods("GET")
	router.Handle("/cars", h.admin.only(h.createCar)).Methods("POST")
	router.HandleFunc("/cars/{id}", h.getCar).Methods("GET")
	router.Handle("/cars/{id}", h.admin.only(h.updateCar)).Methods("PUT")
	router.Handle("/cars/{id}", h.admin.only(h.deleteCar)).Methods("DELETE")
}

// listHomeCars handles GET /carshome
func (h *CarHandlers) listHomeCars(w http.ResponseWriter, r *http.Request) {
	cars, err := storage.Collect(h.cars.Find(r.Context(), storage.Filter{}, storage.WithLimit(HomeCarsLimit)))
	if err != nil {
		err = apperrors.Internal("failed to list cars", err)
	}
	httputil.WriteJSONOrError(w, r, cars, err)
}

// listCars handles GET /cars
func (h *CarHandlers) listCars(w http.ResponseWriter, r *http.Request) {
	cars, err := storage.Collect(h.cars.Find(r.Context(), storage.Filter{}))
	if err != nil {
		err = apperrors.Internal("failed to list cars", err)
	}
	httputil.WriteJSONOrError(w, r, cars, err)
}

// createCar handles POST /cars
func (h *CarHandlers) createCar(w http.ResponseWriter, r *http.Request) {
	car, ok := httputil.ParseDocumentOrError(w, r)
	if !ok {
		return
	}

	result, err := h.guards.InsertCatalogEntry(r.Context(), car)
	httputil.WriteJSONOrError(w, r, result, err)
}

// getCar handles GET /cars/{id}
func (h *CarHandlers) getCar(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id", MsgInvalidProductID)
	if !ok {
		return
	}

	car, found, err := h.cars.FindOne(r.Context(), storage.ByID(id))
	switch {
	case err != nil:
		httputil.WriteAppError(w, r, apperrors.Internal("failed to load car", err))
	case !found:
		httputil.WriteAppError(w, r, apperrors.NotFound(policy.MsgCarNotFound))
	default:
		httputil.WriteSuccess(w, car)
	}
}

// updateCar handles PUT /cars/{id}. Every field of the body except _id is
// set on the stored entry; the entry is never created.
func (h *CarHandlers) updateCar(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id", MsgInvalidProductID)
	if !ok {
		return
	}

	body, ok := httputil.ParseDocumentOrError(w, r)
	if !ok {
		return
	}
	set := storage.Without(body, storage.FieldID)
	if len(set) == 0 {
		httputil.WriteAppError(w, r, apperrors.InvalidArgument(MsgEmptyUpdate))
		return
	}

	result, err := h.cars.UpdateOne(r.Context(), storage.ByID(id), set, false)
	switch {
	case err != nil:
		httputil.WriteAppError(w, r, apperrors.Internal("failed to update car", err))
	case result.MatchedCount == 0:
		httputil.WriteAppError(w, r, apperrors.NotFound(policy.MsgCarNotFound))
	default:
		httputil.WriteSuccess(w, result)
	}
}

// deleteCar handles DELETE /cars/{id}
func (h *CarHandlers) deleteCar(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathIDOrError(w, r, "id", MsgInvalidProductID)
	if !ok {
		return
	}

	result, err := h.guards.DeleteCatalogEntry(r.Context(), id)
	httputil.WriteJSONOrError(w, r, result, err)
}
