// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Every failure leaves the server as the same discriminated result:
//
//	{"acknowledged": false, "error": "forbidden", "message": "Admin can access only this route"}
//
// with the status code chosen by apperrors.HTTPStatus.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, result)
//	httputil.WriteAppError(w, r, err)
//
// # Request Parsing
//
//	doc, ok := httputil.ParseDocumentOrError(w, r)
//	if !ok {
//		return // Error response already written
//	}
//	id, ok := httputil.ParsePathIDOrError(w, r, "id", "Please send valid product id!")
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware([]string{"*"}),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: identity resolution and the admin gate
package httputil
