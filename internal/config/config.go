// Package config provides centralized configuration management for the
// service. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast
// on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	MetaDB   MetaDBConfig
	Store    StoreConfig
	Import   ImportConfig
	Watch    WatchConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout caps response writing; 0 disables it so import
	// responses can stay open for the whole run (default: 0)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys is a comma-separated list of accepted X-API-Key values.
	// When empty the API requires no authentication.
	APIKeys []string `env:"API_KEYS"`
}

// MetaDBConfig holds the SQLite bookkeeping database settings.
type MetaDBConfig struct {
	// Path is the SQLite file holding profiles and runs (default: data/csvimport.db)
	Path string `env:"META_DB_PATH" default:"data/csvimport.db"`
}

// StoreConfig holds record store backend settings.
type StoreConfig struct {
	// Backend selects where imported records go: memory or postgres (default: memory)
	Backend string `env:"STORE_BACKEND" default:"memory"`

	// SchemaPath is the YAML file declaring the record collections (default: schema.yaml)
	SchemaPath string `env:"STORE_SCHEMA_PATH" default:"schema.yaml"`

	// URL is the PostgreSQL connection string, required for the postgres backend.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Store backend names.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// ImportConfig holds import processing settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// Timeout is the maximum duration for a single import run (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`
}

// WatchConfig holds hot folder settings.
type WatchConfig struct {
	// Enabled turns the inbox watcher on (default: false)
	Enabled bool `env:"WATCH_ENABLED" default:"false"`

	// Dir is the inbox directory (default: inbox)
	Dir string `env:"WATCH_DIR" default:"inbox"`

	// Pattern matches file names to import, doublestar syntax (default: *.csv)
	Pattern string `env:"WATCH_PATTERN" default:"*.csv"`

	// Profile is the name of the profile files are imported with.
	// Required when the watcher is enabled.
	Profile string `env:"WATCH_PROFILE"`

	// Settle is how long a file must stay unchanged before import (default: 2s)
	Settle time.Duration `env:"WATCH_SETTLE" default:"2s"`
}

// NotifyConfig holds run report delivery settings.
type NotifyConfig struct {
	// GatewayURL is the mail gateway endpoint; empty logs reports instead.
	GatewayURL string `env:"NOTIFY_GATEWAY_URL"`

	// From is the sender address on gateway reports (default: csvimport@localhost)
	From string `env:"NOTIFY_FROM" default:"csvimport@localhost"`

	// To is the recipient for profiles that request notification.
	To string `env:"NOTIFY_TO"`

	// Timeout is the gateway request timeout (default: 10s)
	Timeout time.Duration `env:"NOTIFY_TIMEOUT" default:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
