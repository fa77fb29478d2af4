// Package config provides centralized configuration management for the tool.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Salesforce SalesforceConfig
	Run        RunConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Server     ServerConfig
	Defaults   DefaultsConfig
}

// SalesforceConfig holds the remote CRM login and pacing settings.
type SalesforceConfig struct {
	Username      string `env:"SF_USERNAME"`
	Password      string `env:"SF_PASSWORD"`
	SecurityToken string `env:"SF_TOKEN" envAlt:"SF_SECURITY_TOKEN"`
	ClientID      string `env:"SF_CLIENT_ID" envAlt:"SF_CONSUMER_KEY"`
	ClientSecret  string `env:"SF_CLIENT_SECRET" envAlt:"SF_CONSUMER_SECRET"`

	// Domain is the login host prefix: login, test or a My Domain name (default: login)
	Domain string `env:"SF_DOMAIN" default:"login"`

	// APIVersion is the REST API version (default: 59.0)
	APIVersion string `env:"SF_API_VERSION" default:"59.0"`

	// HTTPTimeout bounds a single API request (default: 2m)
	HTTPTimeout time.Duration `env:"SF_HTTP_TIMEOUT" default:"2m"`

	// RequestsPerSecond paces API requests; 0 disables pacing (default: 5)
	RequestsPerSecond float64 `env:"SF_REQUESTS_PER_SECOND" default:"5"`

	// Burst is the number of requests allowed back to back (default: 1)
	Burst int `env:"SF_BURST" default:"1"`
}

// RunConfig holds pipeline settings.
type RunConfig struct {
	// MappingDir holds the *.sdl rename tables (default: current directory)
	MappingDir string `env:"MAPPING_DIR" default:"."`

	// OutputDir receives the debug snapshot and reconciliation artifacts (default: current directory)
	OutputDir string `env:"OUTPUT_DIR" default:"."`

	// ChunkSize is the number of records per remote submission (default: 10000)
	ChunkSize int `env:"RUN_CHUNK_SIZE" default:"10000"`
}

// DatabaseConfig holds the optional run ledger connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty disables the ledger.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema creates the ledger tables on startup (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"true"`
}

// Enabled reports whether a ledger database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ServerConfig holds settings of the read-only HTTP API.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// RequestsPerMinute is the per-client rate limit; 0 disables it (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// APIKeys enables X-API-Key authentication on /api when non-empty
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultsConfig overrides the fallback account of entities whose account
// reference misses.
type DefaultsConfig struct {
	ContactsAccountID string `env:"DEFAULT_ACCOUNT_ID_CONTACTS"`
	AssetsAccountID   string `env:"DEFAULT_ACCOUNT_ID_ASSETS"`
	InvoicesAccountID string `env:"DEFAULT_ACCOUNT_ID_INVOICES"`
}

// AccountIDs returns the configured overrides keyed by entity.
func (c DefaultsConfig) AccountIDs() map[string]string {
	out := make(map[string]string, 3)
	for entity, id := range map[string]string{
		"contacts": c.ContactsAccountID,
		"assets":   c.AssetsAccountID,
		"invoices": c.InvoicesAccountID,
	} {
		if id != "" {
			out[entity] = id
		}
	}
	return out
}
