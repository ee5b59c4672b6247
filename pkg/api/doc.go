// Package api provides the HTTP JSON API of the sorum car catalog.
//
// # Overview
//
// The server exposes the catalog, orders, reviews and user accounts over
// gorilla/mux. Every request passes through identity resolution, which never
// rejects; admin routes are additionally wrapped by the role gate, and the
// destructive catalog and admin-management routes go through the
// protected-record guards.
//
// # Routes
//
//	GET    /carshome                 public   first six catalog entries
//	GET    /cars                     public   all catalog entries
//	POST   /cars                     admin    insert unless the title exists
//	GET    /cars/{id}                public   one entry
//	PUT    /cars/{id}                admin    set body fields except _id
//	DELETE /cars/{id}                admin    refused for the main entry
//	POST   /orders?email=            public   place an order
//	GET    /orders                   admin    all orders
//	GET    /order/{id}               public   one order
//	GET    /orders/{email}           public   orders of one customer
//	PATCH  /updateOrderStatus        admin    set status by id
//	DELETE /orders/{id}              public   delete an order
//	PUT    /review                   public   upsert by reviewer email
//	GET    /review/{email}           public   one review
//	GET    /review                   public   all reviews
//	PUT    /users                    public   upsert name and email
//	PUT    /users/admin/{email}      admin    grant the admin role
//	DELETE /users/admin/{email}      admin    revoke it, never from the main admin
//	GET    /users/{email}            public   {"admin": bool}
//	GET    /users                    public   all admins
//
// Failures are written by httputil.WriteAppError as
// {"acknowledged": false, "error": kind, "message": text}.
//
// # Usage
//
//	server := api.NewServer(api.Config{
//		Store:    store,
//		Gate:     gate,
//		Guards:   guards,
//		Resolver: auth.NewResolver(verifier, logger),
//		Logger:   logger,
//		Metrics:  metrics,
//	})
//	http.ListenAndServe(":5000", server)
package api
