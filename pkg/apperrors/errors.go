// Package apperrors defines the error taxonomy shared by the authorization,
// policy, and storage layers, and how each kind surfaces at the HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why an operation did not proceed
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated" // No identity on a gated route
	KindForbidden       Kind = "forbidden"       // Identity present, role insufficient
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"         // Duplicate title on create
	KindPolicyViolation Kind = "policy_violation" // Mutation of a protected record
	KindInternal        Kind = "internal"
)

// Error carries a Kind, a caller-facing message and an optional cause
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthenticated creates an error for a missing identity
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// Forbidden creates an error for an identity without the required role
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// InvalidArgument creates an error for malformed client input
func InvalidArgument(message string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message}
}

// NotFound creates an error for an absent record
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict creates an error for a uniqueness violation
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// PolicyViolation creates an error for a vetoed mutation of a protected record
func PolicyViolation(message string) *Error {
	return &Error{Kind: KindPolicyViolation, Message: message}
}

// Internal wraps an unexpected failure, typically from the store
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for errors outside the taxonomy
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the caller-facing message for err. Errors outside the
// taxonomy never leak their text.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps a Kind to the status code written at the boundary
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPolicyViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
