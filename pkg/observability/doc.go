// Package observability provides structured logging, Prometheus metrics,
// health probes and OpenTelemetry wiring for the sorum server.
//
// # Overview
//
// Logging is logrus throughout. Request handlers pull a request-scoped entry
// out of the context so every line carries the request id and, when a span
// is recording, the trace and span ids.
//
// # Structured Logging
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info"})
//	observability.FromContext(ctx).WithField("email", email).Warn("no stored user")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// Metrics also satisfies the recorder interfaces of the role gate, the
// protected-record guards and the instrumented store.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("store", true, store.Ping)
//	checker.AddCheck("role_cache", false, cache.Ping)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
package observability
