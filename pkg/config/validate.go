package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all validation failures in a config.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a configuration for invalid values. All failures are
// collected and returned together.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	if cfg.Server.ListenAddress != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "server.listen_address",
				Message: fmt.Sprintf("not a valid host:port address: %v", err),
			})
		}
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.read_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.write_timeout",
			Message: "must not be negative",
		})
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, &ValidationError{
			Field:   "server.shutdown_timeout",
			Message: "must not be negative",
		})
	}

	if cfg.Server.RateLimit.Enabled {
		if cfg.Server.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, &ValidationError{
				Field:   "server.rate_limit.requests_per_second",
				Message: "must be positive",
			})
		}
		if cfg.Server.RateLimit.Burst <= 0 {
			errs = append(errs, &ValidationError{
				Field:   "server.rate_limit.burst",
				Message: "must be positive",
			})
		}
	}
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, &ValidationError{
				Field:   "server.tls.cert_file",
				Message: "required when TLS is enabled",
			})
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, &ValidationError{
				Field:   "server.tls.key_file",
				Message: "required when TLS is enabled",
			})
		}
		switch cfg.Server.TLS.MinVersion {
		case "", "1.2", "1.3":
		default:
			errs = append(errs, &ValidationError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("unknown TLS version %q (expected \"1.2\" or \"1.3\")", cfg.Server.TLS.MinVersion),
			})
		}
	}

	switch cfg.Policy.Backend {
	case BackendMemory, BackendSQLite:
	default:
		errs = append(errs, &ValidationError{
			Field:   "policy.backend",
			Message: fmt.Sprintf("unknown backend %q (expected \"memory\" or \"sqlite\")", cfg.Policy.Backend),
		})
	}
	if cfg.Policy.Backend == BackendSQLite && cfg.Policy.SQLitePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "policy.sqlite_path",
			Message: "required when backend is \"sqlite\"",
		})
	}
	if cfg.Policy.Watch && cfg.Policy.FilePath == "" {
		errs = append(errs, &ValidationError{
			Field:   "policy.watch",
			Message: "requires policy.file_path to be set",
		})
	}

	switch cfg.Audit.Backend {
	case BackendMemory, BackendSQLite:
	default:
		errs = append(errs, &ValidationError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q (expected \"memory\" or \"sqlite\")", cfg.Audit.Backend),
		})
	}
	if cfg.Audit.Backend == BackendSQLite && cfg.Audit.SQLite.Path == "" {
		errs = append(errs, &ValidationError{
			Field:   "audit.sqlite.path",
			Message: "required when backend is \"sqlite\"",
		})
	}
	if cfg.Audit.Retention.Days < 0 {
		errs = append(errs, &ValidationError{
			Field:   "audit.retention.days",
			Message: "must not be negative",
		})
	}
	if cfg.Audit.Retention.MaxRecords < 0 {
		errs = append(errs, &ValidationError{
			Field:   "audit.retention.max_records",
			Message: "must not be negative",
		})
	}
	if cfg.Audit.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Audit.Retention.Schedule); err != nil {
			errs = append(errs, &ValidationError{
				Field:   "audit.retention.schedule",
				Message: fmt.Sprintf("not a valid cron expression: %v", err),
			})
		}
	}

	for ip, score := range cfg.Scoring.SuspiciousIPs {
		if net.ParseIP(ip) == nil {
			errs = append(errs, &ValidationError{
				Field:   "scoring.suspicious_ips",
				Message: fmt.Sprintf("%q is not a valid IP address", ip),
			})
		}
		if score < 0 || score > 1 {
			errs = append(errs, &ValidationError{
				Field:   "scoring.suspicious_ips",
				Message: fmt.Sprintf("score %v for %q outside [0,1]", score, ip),
			})
		}
	}
	for port, score := range cfg.Scoring.SuspiciousPorts {
		if port < 1 || port > 65535 {
			errs = append(errs, &ValidationError{
				Field:   "scoring.suspicious_ports",
				Message: fmt.Sprintf("port %d outside 1-65535", port),
			})
		}
		if score < 0 || score > 1 {
			errs = append(errs, &ValidationError{
				Field:   "scoring.suspicious_ports",
				Message: fmt.Sprintf("score %v for port %d outside [0,1]", score, port),
			})
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level),
		})
	}
	switch cfg.Telemetry.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Telemetry.Logging.Format),
		})
	}
	if cfg.Telemetry.Metrics.Enabled && !strings.HasPrefix(cfg.Telemetry.Metrics.Path, "/") {
		errs = append(errs, &ValidationError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
