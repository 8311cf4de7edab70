// Package config loads service configuration from a YAML file with
// environment-variable overrides. Environment always wins, so deployments
// can run from env alone.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the identity service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Relay    RelayConfig    `yaml:"relay"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the optional Redis connection for login throttling.
// An empty URL disables throttling.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds token and login settings.
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenTTLHours    int    `yaml:"token_ttl_hours"`
	BcryptCost       int    `yaml:"bcrypt_cost"`
	LoginMaxAttempts int    `yaml:"login_max_attempts"`
	LoginWindowSecs  int    `yaml:"login_window_secs"`
}

// TokenTTL returns the session token lifetime.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// LoginWindow returns the throttle window.
func (c AuthConfig) LoginWindow() time.Duration {
	return time.Duration(c.LoginWindowSecs) * time.Second
}

// EmailConfig holds SES sender settings.
type EmailConfig struct {
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
}

// RelayConfig holds outbox relay tuning: batch size, poll cadence, and the
// retry backoff policy.
type RelayConfig struct {
	BatchSize               int     `yaml:"batch_size"`
	IntervalSecs            int     `yaml:"interval_secs"`
	MaxRetries              int     `yaml:"max_retries"`
	BackoffMaxFactor        float64 `yaml:"backoff_max_factor"`
	BackoffBaseFactor       float64 `yaml:"backoff_base_factor"`
	BackoffBaseDelaySeconds float64 `yaml:"backoff_base_delay_seconds"`
	BackoffJitterMaxMillis  int     `yaml:"backoff_jitter_max_millis"`
}

// Interval returns the idle poll cadence.
func (c RelayConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML file (when present), merges in a .env file, and
// applies environment overrides. A missing YAML file is fine; env can carry
// everything.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		if loaded, err := Load(path); err == nil {
			cfg = loaded
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Auth.LoginMaxAttempts == 0 {
		c.Auth.LoginMaxAttempts = 10
	}
	if c.Auth.LoginWindowSecs == 0 {
		c.Auth.LoginWindowSecs = 300
	}
	if c.Email.Region == "" {
		c.Email.Region = "us-east-1"
	}
	if c.Relay.BatchSize == 0 {
		c.Relay.BatchSize = 50
	}
	if c.Relay.IntervalSecs == 0 {
		c.Relay.IntervalSecs = 5
	}
	if c.Relay.MaxRetries == 0 {
		c.Relay.MaxRetries = 5
	}
	if c.Relay.BackoffMaxFactor == 0 {
		c.Relay.BackoffMaxFactor = 64
	}
	if c.Relay.BackoffBaseFactor == 0 {
		c.Relay.BackoffBaseFactor = 2
	}
	if c.Relay.BackoffBaseDelaySeconds == 0 {
		c.Relay.BackoffBaseDelaySeconds = 10
	}
	if c.Relay.BackoffJitterMaxMillis == 0 {
		c.Relay.BackoffJitterMaxMillis = 1000
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	overrideInt(&c.Server.Port, "PORT")
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	overrideInt(&c.Auth.TokenTTLHours, "TOKEN_TTL_HOURS")
	overrideInt(&c.Auth.LoginMaxAttempts, "LOGIN_MAX_ATTEMPTS")
	overrideInt(&c.Auth.LoginWindowSecs, "LOGIN_WINDOW_SECS")
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Email.Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		c.Email.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		c.Email.SecretKey = v
	}
	if v := os.Getenv("EMAIL_FROM_ADDRESS"); v != "" {
		c.Email.FromAddress = v
	}
	if v := os.Getenv("EMAIL_FROM_NAME"); v != "" {
		c.Email.FromName = v
	}
	overrideInt(&c.Relay.BatchSize, "RELAY_BATCH_SIZE")
	overrideInt(&c.Relay.IntervalSecs, "RELAY_INTERVAL_SECS")
	overrideInt(&c.Relay.MaxRetries, "RELAY_MAX_RETRIES")
	overrideFloat(&c.Relay.BackoffMaxFactor, "RELAY_BACKOFF_MAX_FACTOR")
	overrideFloat(&c.Relay.BackoffBaseFactor, "RELAY_BACKOFF_BASE_FACTOR")
	overrideFloat(&c.Relay.BackoffBaseDelaySeconds, "RELAY_BACKOFF_BASE_DELAY_SECONDS")
	overrideInt(&c.Relay.BackoffJitterMaxMillis, "RELAY_BACKOFF_JITTER_MAX_MILLIS")
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.Relay.BatchSize <= 0 {
		return fmt.Errorf("config: RELAY_BATCH_SIZE must be positive")
	}
	if c.Relay.IntervalSecs <= 0 {
		return fmt.Errorf("config: RELAY_INTERVAL_SECS must be positive")
	}
	if c.Relay.MaxRetries < 0 {
		return fmt.Errorf("config: RELAY_MAX_RETRIES must not be negative")
	}
	if c.Relay.BackoffMaxFactor < 1 {
		return fmt.Errorf("config: RELAY_BACKOFF_MAX_FACTOR must be at least 1")
	}
	if c.Relay.BackoffBaseFactor < 1 {
		return fmt.Errorf("config: RELAY_BACKOFF_BASE_FACTOR must be at least 1")
	}
	if c.Relay.BackoffBaseDelaySeconds <= 0 {
		return fmt.Errorf("config: RELAY_BACKOFF_BASE_DELAY_SECONDS must be positive")
	}
	if c.Relay.BackoffJitterMaxMillis <= 0 {
		return fmt.Errorf("config: RELAY_BACKOFF_JITTER_MAX_MILLIS must be positive")
	}
	return nil
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
