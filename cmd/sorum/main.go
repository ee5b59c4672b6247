package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/sorumcars/sorum/pkg/api"
	"github.com/sorumcars/sorum/pkg/async"
	"github.com/sorumcars/sorum/pkg/auth"
	"github.com/sorumcars/sorum/pkg/config"
	"github.com/sorumcars/sorum/pkg/observability"
	"github.com/sorumcars/sorum/pkg/policy"
	"github.com/sorumcars/sorum/pkg/rbac"
	"github.com/sorumcars/sorum/pkg/storage"
	"github.com/sorumcars/sorum/pkg/storage/backend"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	port := flag.String("port", "", "Port to listen on (overrides SORUM_PORT)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx := context.Background()

	otelCfg := cfg.Observability.OTel
	if version != "dev" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	if metrics != nil {
		store = storage.Instrument(store, metrics)
	}

	health := observability.NewHealthChecker(version)
	health.AddCheck("store", true, store.Ping)

	gateOpts := []rbac.Option{rbac.WithLogger(logger)}
	if metrics != nil {
		gateOpts = append(gateOpts, rbac.WithRecorder(metrics))
	}
	var roleCache *rbac.RedisRoleCache
	if cfg.RoleCache.URL != "" {
		roleCache, err = rbac.NewRedisRoleCache(cfg.RoleCache)
		if err != nil {
			return err
		}
		gateOpts = append(gateOpts, rbac.WithCache(roleCache))
		health.AddCheck("role_cache", false, roleCache.Ping)
		logger.Info("role cache enabled")
	}
	gate := rbac.NewGate(store.Collection(storage.CollectionUsers), gateOpts...)

	guardOpts := []policy.Option{policy.WithLogger(logger), policy.WithRoleInvalidator(gate)}
	if metrics != nil {
		guardOpts = append(guardOpts, policy.WithVetoRecorder(metrics))
	}
	guards := policy.NewGuards(store, guardOpts...)

	verifier, err := newVerifier(ctx, cfg.Auth, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Config{
		Store:        store,
		Gate:         gate,
		Guards:       guards,
		Resolver:     auth.NewResolver(verifier, logger),
		Logger:       logger,
		Metrics:      metrics,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	var handler http.Handler = server
	if otelCfg.Enabled {
		handler = otelhttp.NewHandler(server, "sorum")
	}

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)
	shutdown.RegisterShutdownFunc(store.Close)
	if roleCache != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return roleCache.Close()
		})
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	serve := func(name string, srv *http.Server) <-chan error {
		logger.WithFields(logrus.Fields{"server": name, "addr": srv.Addr}).Info("listening")
		return async.Go(logger, name, func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	healthDone := serve("health server", healthServer)
	apiDone := serve("api server", httpServer)
	go func() {
		if err := async.First(healthDone, apiDone); err != nil {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	logger.WithField("version", version).Info(api.Banner)
	return shutdown.WaitForShutdown()
}

// newVerifier builds the token verifier. Without an issuer every token is
// rejected, so every caller resolves to anonymous.
func newVerifier(ctx context.Context, cfg config.AuthConfig, logger logrus.FieldLogger) (auth.Verifier, error) {
	if !cfg.Enabled() {
		logger.Warn("no identity provider configured, all callers are anonymous")
		return auth.RejectAll(), nil
	}

	oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDC)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}
	logger.WithField("issuer", cfg.OIDC.IssuerURL).Info("identity provider configured")

	if cfg.TokenCacheSize <= 0 {
		return oidcVerifier, nil
	}
	return auth.NewCachingVerifier(oidcVerifier, cfg.TokenCacheSize, cfg.TokenCacheTTL), nil
}
