// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/observability"
)

// ErrorResponse is the discriminated failure result every route writes
type ErrorResponse struct {
	Acknowledged bool           `json:"acknowledged"`
	Error        apperrors.Kind `json:"error"`
	Message      string         `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteText writes a plain-text 200 response
func WriteText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// WriteErrorMessage writes a failure result with an explicit kind
func WriteErrorMessage(w http.ResponseWriter, kind apperrors.Kind, message string) {
	WriteJSON(w, apperrors.HTTPStatus(kind), ErrorResponse{
		Acknowledged: false,
		Error:        kind,
		Message:      message,
	})
}

// WriteAppError maps err onto its status code and writes the failure
// result. Internal errors are logged with their cause; the caller only sees
// a generic message.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
	}
	WriteErrorMessage(w, kind, apperrors.MessageOf(err))
}

// WriteJSONOrError writes JSON on success or an internal error on failure
func WriteJSONOrError(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteSuccess(w, data)
}
