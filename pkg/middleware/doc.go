// Package middleware provides HTTP middleware for identity resolution and
// admin authorization.
//
// # Overview
//
// AuthMiddleware runs on every route. It resolves the bearer credential into
// an auth.Identity and stores it in the request context; it never rejects.
// RequireAdmin wraps only the admin routes and consults the role gate.
//
//	router.Use(middleware.NewAuthMiddleware(resolver).Handler)
//	router.Handle("/cars", middleware.RequireAdmin(gate)(createCar)).Methods("POST")
//
// # Related Packages
//
//   - pkg/auth: identity resolution
//   - pkg/rbac: the role gate
package middleware
