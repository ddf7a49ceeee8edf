package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified
// path, applies default values, and validates the result. Environment
// variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention BASTION_SECTION_FIELD (e.g. BASTION_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("BASTION_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("BASTION_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("BASTION_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("BASTION_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("BASTION_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Policy overrides
	if val := os.Getenv("BASTION_POLICY_BACKEND"); val != "" {
		cfg.Policy.Backend = val
	}
	if val := os.Getenv("BASTION_POLICY_SQLITE_PATH"); val != "" {
		cfg.Policy.SQLitePath = val
	}
	if val := os.Getenv("BASTION_POLICY_FILE_PATH"); val != "" {
		cfg.Policy.FilePath = val
	}
	if val := os.Getenv("BASTION_POLICY_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Policy.Watch = b
		}
	}

	// Audit overrides
	if val := os.Getenv("BASTION_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if val := os.Getenv("BASTION_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("BASTION_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLite.Path = val
	}
	if val := os.Getenv("BASTION_AUDIT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.Retention.Days = i
		}
	}
	if val := os.Getenv("BASTION_AUDIT_RETENTION_SCHEDULE"); val != "" {
		cfg.Audit.Retention.Schedule = val
	}
	if val := os.Getenv("BASTION_AUDIT_RETENTION_MAX_RECORDS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.Retention.MaxRecords = i
		}
	}

	// Scoring overrides
	if val := os.Getenv("BASTION_SCORING_SEED"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Scoring.Seed = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("BASTION_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("BASTION_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("BASTION_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("BASTION_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
