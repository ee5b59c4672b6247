package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/httputil"
	"github.com/sorumcars/sorum/pkg/storage"
)

// ReviewHandlers serves reviews, one per reviewer email
type ReviewHandlers struct {
	reviews storage.Collection
}

// NewReviewHandlers creates the review handlers
func NewReviewHandlers(store storage.Store) *ReviewHandlers {
	return &ReviewHandlers{reviews: store.Collection(storage.CollectionReviews)}
}

// RegisterRoutes registers review routes
func (h *ReviewHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/review", h.putReview).Methods("PUT")
	router.HandleFunc("/review/{email}", h.getReview).Methods("GET")
	router.HandleFunc("/review", h.listReviews).Methods("GET")
}

// reviewerEmail reads user.email from a review body
func reviewerEmail(review storage.Document) string {
	user, _ := review[storage.FieldUser].(map[string]interface{})
	email, _ := user[storage.FieldEmail].(string)
	return email
}

// putReview handles PUT /review. A second review from the same email
// overwrites the first.
func (h *ReviewHandlers) putReview(w http.ResponseWriter, r *http.Request) {
	body, ok := httputil.ParseDocumentOrError(w, r)
	if !ok {
		return
	}

	email := reviewerEmail(body)
	if email == "" {
		httputil.WriteAppError(w, r, apperrors.InvalidArgument(MsgReviewerRequired))
		return
	}

	set := storage.Without(body, storage.FieldID)
	result, err := h.reviews.UpdateOne(r.Context(), storage.ByEmail(email), set, true)
	if err != nil {
		err = apperrors.Internal("failed to save review", err)
	}
	httputil.WriteJSONOrError(w, r, result, err)
}

// getReview handles GET /review/{email}
func (h *ReviewHandlers) getReview(w http.ResponseWriter, r *http.Request) {
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	review, found, err := h.reviews.FindOne(r.Context(), storage.ByEmail(email))
	switch {
	case err != nil:
		httputil.WriteAppError(w, r, apperrors.Internal("failed to load review", err))
	case !found:
		httputil.WriteAppError(w, r, apperrors.NotFound(MsgReviewNotFound))
	default:
		httputil.WriteSuccess(w, review)
	}
}

// listReviews handles GET /review
func (h *ReviewHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := storage.Collect(h.reviews.Find(r.Context(), storage.Filter{}))
	if err != nil {
		err = apperrors.Internal("failed to list reviews", err)
	}
	httputil.WriteJSONOrError(w, r, reviews, err)
}
