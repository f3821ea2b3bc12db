// Package config loads runtime configuration from the environment, an
// optional .env file, and an optional YAML overlay for settings that do
// not fit environment variables (such as the user list).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Razlynski/calculator-mvc-isaac/internal/app/auth"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port            int           `env:"SERVER_PORT,default=8080" yaml:"port"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=15s" yaml:"write_timeout"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT,default=60s" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS,default=*" yaml:"allowed_origins"`
}

// DatabaseConfig selects and tunes the snapshot store backend.
type DatabaseConfig struct {
	// Driver is memory, postgres or redis. The redis driver keeps window
	// snapshots in Redis and still uses Postgres for history when a DSN
	// is configured.
	Driver          string        `env:"DATABASE_DRIVER,default=memory" yaml:"driver"`
	DSN             string        `env:"DATABASE_URL" yaml:"dsn"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=25" yaml:"max_open_conns"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=25" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=5m" yaml:"conn_max_lifetime"`
	Migrate         bool          `env:"DATABASE_MIGRATE,default=true" yaml:"migrate"`
}

// RedisConfig connects the Redis snapshot store.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB,default=0" yaml:"db"`
}

// AuthConfig carries credentials accepted by the API.
type AuthConfig struct {
	Secret       string        `env:"AUTH_JWT_SECRET,default=dev-secret-change-me" yaml:"secret"`
	Tokens       []string      `env:"AUTH_API_TOKENS" yaml:"tokens"`
	APIKeyHashes []string      `env:"AUTH_API_KEY_HASHES" yaml:"api_key_hashes"`
	TokenTTL     time.Duration `env:"AUTH_TOKEN_TTL,default=24h" yaml:"token_ttl"`
	// Users come from the YAML overlay; passwords do not belong in
	// environment variables.
	Users []auth.User `yaml:"users"`
}

// HistoryConfig bounds per-window history and session lifetime.
type HistoryConfig struct {
	DisplayLimit  int           `env:"HISTORY_DISPLAY_LIMIT,default=10" yaml:"display_limit"`
	SessionTTL    time.Duration `env:"HISTORY_SESSION_TTL,default=30m" yaml:"session_ttl"`
	SweepSchedule string        `env:"HISTORY_SWEEP_SCHEDULE,default=@hourly" yaml:"sweep_schedule"`
}

// RateLimitConfig throttles per-client request rates.
type RateLimitConfig struct {
	Enabled           bool          `env:"RATE_LIMIT_ENABLED,default=true" yaml:"enabled"`
	RequestsPerSecond float64       `env:"RATE_LIMIT_RPS,default=20" yaml:"requests_per_second"`
	Burst             int           `env:"RATE_LIMIT_BURST,default=40" yaml:"burst"`
	CleanupInterval   time.Duration `env:"RATE_LIMIT_CLEANUP_INTERVAL,default=10m" yaml:"cleanup_interval"`
}

// AuditConfig controls the request audit trail.
type AuditConfig struct {
	BufferSize int    `env:"AUDIT_BUFFER_SIZE,default=200" yaml:"buffer_size"`
	FilePath   string `env:"AUDIT_FILE" yaml:"file_path"`
}

// LoggingConfig mirrors the logger package settings.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"LOG_FORMAT,default=json" yaml:"format"`
	Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=calcd" yaml:"file_prefix"`
}

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	History   HistoryConfig   `yaml:"history"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; CONFIG_FILE may name
// a YAML overlay merged on top of the decoded environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyOverlay(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyOverlay merges a YAML document into the config. Only keys present
// in the document are touched.
func (c *Config) applyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config overlay: %w", err)
	}
	return nil
}

// Validate rejects configurations that cannot be wired.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("postgres driver requires DATABASE_URL")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis driver requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.History.DisplayLimit <= 0 {
		return fmt.Errorf("history display limit must be positive")
	}
	return nil
}
