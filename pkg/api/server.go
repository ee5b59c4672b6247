package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/httputil"
	"github.com/sorumcars/sorum/pkg/middleware"
	"github.com/sorumcars/sorum/pkg/observability"
	"github.com/sorumcars/sorum/pkg/policy"
	"github.com/sorumcars/sorum/pkg/rbac"
	"github.com/sorumcars/sorum/pkg/storage"
)

// Banner is the body of GET /
const Banner = "Running Sorum Server"

// DefaultMaxBodyBytes caps request bodies
const DefaultMaxBodyBytes = 1 << 20

// Config wires the server's dependencies
type Config struct {
	Store    storage.Store
	Gate     *rbac.Gate
	Guards   *policy.Guards
	Resolver middleware.IdentityResolver
	Logger   logrus.FieldLogger
	Metrics  *observability.Metrics // optional

	CORSOrigins  []string
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	store   storage.Store
	gate    *rbac.Gate
	guards  *policy.Guards
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server with every route registered
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		store:  cfg.Store,
		gate:   cfg.Gate,
		guards: cfg.Guards,
		router: mux.NewRouter(),
	}

	// Route-aware middleware runs after matching
	if cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))
	}
	s.router.Use(middleware.NewAuthMiddleware(cfg.Resolver).Handler)

	s.setupRoutes()

	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware(cfg.Logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(cfg.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.banner).Methods("GET")

	admin := middleware.RequireAdmin(s.gate)

	s.RegisterRoutes(NewCarHandlers(s.store, s.guards, admin))
	s.RegisterRoutes(NewOrderHandlers(s.store, admin))
	s.RegisterRoutes(NewReviewHandlers(s.store))
	s.RegisterRoutes(NewUserHandlers(s.store, s.gate, s.guards, admin))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// banner handles GET /
func (s *Server) banner(w http.ResponseWriter, r *http.Request) {
	httputil.WriteText(w, Banner)
}

// adminWrapper guards a single route with the role gate
type adminWrapper func(http.Handler) http.Handler

func (a adminWrapper) only(h http.HandlerFunc) http.Handler {
	return a(h)
}
