package config

import (
	"time"
)

// Storage backend names accepted by the policy and audit sections.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the root configuration for the bastion firewall service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `yaml:"server"`

	// Policy contains policy storage and loading settings.
	Policy PolicyConfig `yaml:"policy"`

	// Audit contains connection record storage settings.
	Audit AuditConfig `yaml:"audit"`

	// Scoring contains anomaly scorer settings.
	Scoring ScoringConfig `yaml:"scoring"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request
	// on a keep-alive connection.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests
	// during shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds the handling of a single request.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// CORS contains cross-origin resource sharing settings.
	CORS CORSConfig `yaml:"cors"`

	// RateLimit contains per-client request rate limit settings.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// TLS contains TLS serving settings.
	TLS TLSConfig `yaml:"tls"`
}

// RateLimitConfig contains per-client request rate limit settings.
type RateLimitConfig struct {
	// Enabled turns on rate limiting.
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate allowed per client.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests a client may send at once
	// before the sustained rate applies.
	Burst int64 `yaml:"burst"`
}

// TLSConfig contains TLS serving settings.
type TLSConfig struct {
	// Enabled makes the server listen with TLS.
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version: "1.2" or "1.3".
	MinVersion string `yaml:"min_version"`
}

// CORSConfig contains cross-origin resource sharing settings.
type CORSConfig struct {
	// Enabled turns on CORS headers.
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists origins allowed to call the API.
	// ["*"] allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists allowed HTTP methods.
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists allowed request headers.
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// PolicyConfig contains policy storage and loading settings.
type PolicyConfig struct {
	// Backend selects the policy store: "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// FilePath is an optional YAML file of policies loaded at startup.
	FilePath string `yaml:"file_path"`

	// Watch reloads policies when the file changes.
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces rapid file events into one reload.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// AuditConfig contains connection record storage settings.
type AuditConfig struct {
	// Enabled turns connection record persistence on.
	Enabled bool `yaml:"enabled"`

	// Backend selects the audit store: "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLite contains sqlite backend settings.
	SQLite AuditSQLiteConfig `yaml:"sqlite"`

	// Retention contains record retention settings.
	Retention RetentionConfig `yaml:"retention"`
}

// AuditSQLiteConfig contains sqlite audit backend settings.
type AuditSQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains audit record retention settings.
type RetentionConfig struct {
	// Days is the number of days to retain records. 0 keeps forever.
	Days int `yaml:"days"`

	// Schedule is a cron expression for pruning runs.
	Schedule string `yaml:"schedule"`

	// MaxRecords caps the number of stored records. 0 is unlimited.
	MaxRecords int `yaml:"max_records"`
}

// ScoringConfig contains anomaly scorer settings.
type ScoringConfig struct {
	// Seed fixes the scorer's random source for reproducible runs.
	// 0 seeds from the current time.
	Seed int64 `yaml:"seed"`

	// SuspiciousIPs maps source IPs to reputation scores in [0,1].
	// Entries are merged over the built-in reputation table.
	SuspiciousIPs map[string]float64 `yaml:"suspicious_ips"`

	// SuspiciousPorts maps destination ports to reputation scores
	// in [0,1]. Entries are merged over the built-in table.
	SuspiciousPorts map[int]float64 `yaml:"suspicious_ports"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric namespace prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem prefix.
	Subsystem string `yaml:"subsystem"`

	// Path is the HTTP path for the metrics endpoint.
	Path string `yaml:"path"`
}
