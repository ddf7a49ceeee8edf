package config

import "time"

// Default values applied to unset configuration fields.
const (
	DefaultListenAddress   = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultRequestTimeout  = 5 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	DefaultPolicyBackend  = "memory"
	DefaultSQLitePath     = "data/policies.db"
	DefaultWatchDebounce  = 500 * time.Millisecond
	DefaultAuditBackend   = "memory"
	DefaultAuditPath      = "data/audit.db"
	DefaultRetentionDays  = 30
	DefaultPruneSchedule  = "0 3 * * *"
	DefaultMetricsPath    = "/metrics"
	DefaultMetricsNS      = "bastion"
	DefaultMetricsSubsys  = "firewall"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultSQLiteMaxConns = 10
	DefaultSQLiteIdle     = 5
	DefaultBusyTimeout    = 5 * time.Second

	DefaultRateLimitRPS   = 100.0
	DefaultRateLimitBurst = 200
	DefaultTLSMinVersion  = "1.2"
)

// ApplyDefaults fills unset fields with default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.CORS.Enabled {
		if len(cfg.Server.CORS.AllowedOrigins) == 0 {
			cfg.Server.CORS.AllowedOrigins = []string{"*"}
		}
		if len(cfg.Server.CORS.AllowedMethods) == 0 {
			cfg.Server.CORS.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		}
		if len(cfg.Server.CORS.AllowedHeaders) == 0 {
			cfg.Server.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-ID"}
		}
	}
	if cfg.Server.RateLimit.Enabled {
		if cfg.Server.RateLimit.RequestsPerSecond == 0 {
			cfg.Server.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
		}
		if cfg.Server.RateLimit.Burst == 0 {
			cfg.Server.RateLimit.Burst = DefaultRateLimitBurst
		}
	}
	if cfg.Server.TLS.Enabled && cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}

	if cfg.Policy.Backend == "" {
		cfg.Policy.Backend = DefaultPolicyBackend
	}
	if cfg.Policy.SQLitePath == "" {
		cfg.Policy.SQLitePath = DefaultSQLitePath
	}
	if cfg.Policy.WatchDebounce == 0 {
		cfg.Policy.WatchDebounce = DefaultWatchDebounce
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.SQLite.Path == "" {
		cfg.Audit.SQLite.Path = DefaultAuditPath
	}
	if cfg.Audit.SQLite.MaxOpenConns == 0 {
		cfg.Audit.SQLite.MaxOpenConns = DefaultSQLiteMaxConns
	}
	if cfg.Audit.SQLite.MaxIdleConns == 0 {
		cfg.Audit.SQLite.MaxIdleConns = DefaultSQLiteIdle
	}
	if cfg.Audit.SQLite.BusyTimeout == 0 {
		cfg.Audit.SQLite.BusyTimeout = DefaultBusyTimeout
	}
	if cfg.Audit.Retention.Days == 0 {
		cfg.Audit.Retention.Days = DefaultRetentionDays
	}
	if cfg.Audit.Retention.Schedule == "" {
		cfg.Audit.Retention.Schedule = DefaultPruneSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsys
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{
		Audit: AuditConfig{
			Enabled: true,
			SQLite: AuditSQLiteConfig{
				WALMode: true,
			},
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{
				Enabled: true,
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
