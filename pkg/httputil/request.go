package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sorumcars/sorum/pkg/apperrors"
	"github.com/sorumcars/sorum/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MsgContentType is the message for a body that is declared but not JSON
const MsgContentType = "Content-Type must be application/json"

// ParseJSON decodes JSON from the request body into the destination. A
// missing Content-Type is accepted; any other non-JSON type is rejected.
// Handlers call it after routing, so gated routes deny callers first.
func ParseJSON(r *http.Request, dest interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.New(MsgContentType)
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes an InvalidArgument result on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteAppError(w, r, apperrors.InvalidArgument(err.Error()))
		return false
	}
	return true
}

// ParseDocumentOrError decodes a JSON object body into a storage document
func ParseDocumentOrError(w http.ResponseWriter, r *http.Request) (storage.Document, bool) {
	var doc storage.Document
	if !ParseJSONOrError(w, r, &doc) {
		return nil, false
	}
	if doc == nil {
		WriteAppError(w, r, apperrors.InvalidArgument("request body must be a JSON object"))
		return nil, false
	}
	return doc, true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	vars := mux.Vars(r)
	str := vars[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return str, nil
}

// ParsePathStringOrError extracts a string path parameter and writes error on failure
func ParsePathStringOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	val, err := ParsePathString(r, key)
	if err != nil {
		WriteAppError(w, r, apperrors.InvalidArgument(err.Error()))
		return "", false
	}
	return val, true
}

// ParseIDOrError validates raw as a record identifier. On failure an
// InvalidArgument result carrying message is written and nothing reaches
// the store.
func ParseIDOrError(w http.ResponseWriter, r *http.Request, raw, message string) (primitive.ObjectID, bool) {
	id, err := storage.ParseID(raw)
	if err != nil {
		WriteAppError(w, r, apperrors.InvalidArgument(message))
		return primitive.NilObjectID, false
	}
	return id, true
}

// ParsePathIDOrError is ParseIDOrError on a path parameter
func ParsePathIDOrError(w http.ResponseWriter, r *http.Request, key, message string) (primitive.ObjectID, bool) {
	return ParseIDOrError(w, r, mux.Vars(r)[key], message)
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// RequireNonEmpty validates that a string field is not empty
func RequireNonEmpty(w http.ResponseWriter, r *http.Request, value, fieldName string) bool {
	if value == "" {
		WriteAppError(w, r, apperrors.InvalidArgument(fmt.Sprintf("%s is required", fieldName)))
		return false
	}
	return true
}
