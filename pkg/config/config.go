package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sorumcars/sorum/pkg/auth"
	"github.com/sorumcars/sorum/pkg/observability"
	"github.com/sorumcars/sorum/pkg/rbac"
	"github.com/sorumcars/sorum/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Identity verification
	Auth AuthConfig

	// Optional shared role cache; disabled when URL is empty
	RoleCache rbac.RedisConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	OIDC           auth.OIDCConfig
	TokenCacheSize int
	TokenCacheTTL  time.Duration
}

// Enabled reports whether an identity provider is configured. Without one
// every caller is anonymous.
func (a AuthConfig) Enabled() bool {
	return a.OIDC.IssuerURL != ""
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTel observability.OTelConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		RoleCache:     loadRoleCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SORUM_HOST", "0.0.0.0"),
		Port:            getEnv("SORUM_PORT", "5000"),
		ReadTimeout:     getEnvDuration("SORUM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SORUM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SORUM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SORUM_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("SORUM_MAX_BODY_BYTES", 1<<20),
		CORSOrigins:     getEnvList("SORUM_CORS_ORIGINS", []string{"*"}),
		HealthPort:      getEnv("SORUM_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("SORUM_STORE", ""); storageType != "" {
		cfg.Type = strings.ToLower(storageType)
	}

	// MongoDB config
	cfg.MongoURI = getEnv("SORUM_MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("SORUM_MONGO_DATABASE", cfg.MongoDatabase)
	if timeout := getEnvDuration("SORUM_MONGO_TIMEOUT", 0); timeout > 0 {
		cfg.MongoTimeout = timeout
	}

	// PostgreSQL config
	if pgURL := getEnv("SORUM_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("SORUM_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("SORUM_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("SORUM_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("SORUM_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	return cfg
}

// loadAuthConfig loads identity provider configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		OIDC: auth.OIDCConfig{
			IssuerURL: getEnv("SORUM_OIDC_ISSUER", ""),
			ClientID:  getEnv("SORUM_OIDC_CLIENT_ID", ""),
		},
		TokenCacheSize: getEnvInt("SORUM_TOKEN_CACHE_SIZE", 1024),
		TokenCacheTTL:  getEnvDuration("SORUM_TOKEN_CACHE_TTL", 5*time.Minute),
	}
}

// loadRoleCacheConfig loads the Redis role cache configuration from environment
func loadRoleCacheConfig() rbac.RedisConfig {
	return rbac.RedisConfig{
		URL:        getEnv("SORUM_REDIS_URL", ""),
		TTL:        getEnvDuration("SORUM_ROLE_CACHE_TTL", time.Minute),
		MaxRetries: getEnvInt("SORUM_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("SORUM_REDIS_POOL_SIZE", 10),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	otel := observability.DefaultOTelConfig()

	return ObservabilityConfig{
		LogLevel:       getEnv("SORUM_LOG_LEVEL", "info"),
		LogFormat:      getEnv("SORUM_LOG_FORMAT", "json"),
		MetricsEnabled: getEnvBool("SORUM_METRICS_ENABLED", true),
		OTel: observability.OTelConfig{
			Enabled:        getEnvBool("SORUM_OTEL_ENABLED", false),
			Endpoint:       getEnv("SORUM_OTEL_ENDPOINT", otel.Endpoint),
			ServiceName:    getEnv("SORUM_OTEL_SERVICE_NAME", otel.ServiceName),
			ServiceVersion: getEnv("SORUM_OTEL_SERVICE_VERSION", otel.ServiceVersion),
			Insecure:       getEnvBool("SORUM_OTEL_INSECURE", otel.Insecure),
			SampleRatio:    getEnvFloat("SORUM_OTEL_SAMPLE_RATIO", 1),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
	case "mongo":
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("mongo URI is required for mongo storage")
		}
		if c.Storage.MongoDatabase == "" {
			return fmt.Errorf("mongo database is required for mongo storage")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, mongo, or postgres)", c.Storage.Type)
	}

	// Validate identity provider config
	if c.Auth.Enabled() {
		if err := c.Auth.OIDC.Validate(); err != nil {
			return err
		}
	}
	if c.Auth.TokenCacheSize < 0 {
		return fmt.Errorf("token cache size must not be negative")
	}

	if _, err := observability.ParseLevel(c.Observability.LogLevel); err != nil {
		return err
	}

	// Validate OpenTelemetry config
	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
