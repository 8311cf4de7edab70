package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "127.0.0.1"

database:
  url: "postgres://localhost/identity_test"
  max_open_conns: 10

auth:
  jwt_secret: "file-secret"
  token_ttl_hours: 12

relay:
  batch_size: 25
  max_retries: 3
  backoff_base_delay_seconds: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "postgres://localhost/identity_test", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, 25, cfg.Relay.BatchSize)
	assert.Equal(t, 3, cfg.Relay.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Relay.BackoffBaseDelaySeconds, 0.001)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Relay.BatchSize)
	assert.Equal(t, 5, cfg.Relay.MaxRetries)
	assert.InDelta(t, 2.0, cfg.Relay.BackoffBaseFactor, 0.001)
	assert.InDelta(t, 64.0, cfg.Relay.BackoffMaxFactor, 0.001)
	assert.Equal(t, 1000, cfg.Relay.BackoffJitterMaxMillis)
	assert.Equal(t, 5*time.Second, cfg.Relay.Interval())
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://file/db"
auth:
  jwt_secret: "file-secret"
relay:
  batch_size: 25
`)

	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("RELAY_BATCH_SIZE", "100")
	t.Setenv("RELAY_BACKOFF_BASE_FACTOR", "3.5")
	t.Setenv("RELAY_MAX_RETRIES", "7")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 100, cfg.Relay.BatchSize)
	assert.InDelta(t, 3.5, cfg.Relay.BackoffBaseFactor, 0.001)
	assert.Equal(t, 7, cfg.Relay.MaxRetries)
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		cfg.Database.URL = "postgres://localhost/identity"
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero batch size", func(c *Config) { c.Relay.BatchSize = -1 }},
		{"negative max retries", func(c *Config) { c.Relay.MaxRetries = -1 }},
		{"max factor below one", func(c *Config) { c.Relay.BackoffMaxFactor = 0.5 }},
		{"base factor below one", func(c *Config) { c.Relay.BackoffBaseFactor = 0.5 }},
		{"zero base delay", func(c *Config) { c.Relay.BackoffBaseDelaySeconds = -1 }},
		{"zero jitter", func(c *Config) { c.Relay.BackoffJitterMaxMillis = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}
