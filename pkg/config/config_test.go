package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "sorumCars", cfg.Storage.MongoDatabase)

	assert.False(t, cfg.Auth.Enabled())
	assert.Equal(t, 1024, cfg.Auth.TokenCacheSize)
	assert.Empty(t, cfg.RoleCache.URL)

	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTel.Enabled)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SORUM_PORT", "8000")
	t.Setenv("SORUM_READ_TIMEOUT", "5s")
	t.Setenv("SORUM_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SORUM_STORE", "MONGO")
	t.Setenv("SORUM_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("SORUM_MONGO_TIMEOUT", "3s")
	t.Setenv("SORUM_OIDC_ISSUER", "https://securetoken.google.com/sorum")
	t.Setenv("SORUM_OIDC_CLIENT_ID", "sorum")
	t.Setenv("SORUM_REDIS_URL", "redis://localhost:6379")
	t.Setenv("SORUM_ROLE_CACHE_TTL", "30s")
	t.Setenv("SORUM_LOG_LEVEL", "debug")
	t.Setenv("SORUM_METRICS_ENABLED", "false")
	t.Setenv("SORUM_OTEL_ENABLED", "1")
	t.Setenv("SORUM_OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "mongo", cfg.Storage.Type)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.MongoURI)
	assert.Equal(t, 3*time.Second, cfg.Storage.MongoTimeout)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, "sorum", cfg.Auth.OIDC.ClientID)
	assert.Equal(t, "redis://localhost:6379", cfg.RoleCache.URL)
	assert.Equal(t, 30*time.Second, cfg.RoleCache.TTL)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.True(t, cfg.Observability.OTel.Enabled)
	assert.InDelta(t, 0.25, cfg.Observability.OTel.SampleRatio, 1e-9)
}

func TestLoadConfigIgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("SORUM_TOKEN_CACHE_SIZE", "lots")
	t.Setenv("SORUM_IDLE_TIMEOUT", "forever")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Auth.TokenCacheSize)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("SORUM_STORE", "postgres")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:        loadServerConfig(),
			Storage:       loadStorageConfig(),
			Auth:          loadAuthConfig(),
			RoleCache:     loadRoleCacheConfig(),
			Observability: loadObservabilityConfig(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "shared ports",
			mutate:  func(c *Config) { c.Server.HealthPort = c.Server.Port },
			wantErr: "must be different",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Storage.Type = "filesystem" },
			wantErr: "invalid storage type",
		},
		{
			name:    "mongo without uri",
			mutate:  func(c *Config) { c.Storage.Type = "mongo" },
			wantErr: "mongo URI is required",
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Storage.Type = "postgres"
				c.Storage.PostgresURL = "postgres://localhost/sorum"
			},
		},
		{
			name:    "issuer without client id",
			mutate:  func(c *Config) { c.Auth.OIDC.IssuerURL = "https://issuer.example" },
			wantErr: "client_id is required",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "loud" },
			wantErr: "loud",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTel.Enabled = true
				c.Observability.OTel.Endpoint = ""
			},
			wantErr: "endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
