package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sentinel-hq/bastion/pkg/audit"
	"sentinel-hq/bastion/pkg/audit/retention"
	"sentinel-hq/bastion/pkg/cli"
	"sentinel-hq/bastion/pkg/config"
	"sentinel-hq/bastion/pkg/evaluation"
	"sentinel-hq/bastion/pkg/policystore"
	"sentinel-hq/bastion/pkg/policystore/source"
	"sentinel-hq/bastion/pkg/scoring"
	"sentinel-hq/bastion/pkg/server"
	"sentinel-hq/bastion/pkg/telemetry/logging"
	"sentinel-hq/bastion/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	policyFile    string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bastion decision server",
	Long: `Start the bastion decision server with the specified configuration.

The server listens on the configured address and evaluates connections
through the policy matcher and anomaly scorer.

Examples:
  # Start with default config
  bastion run

  # Start with custom config
  bastion run --config /etc/bastion/config.yaml

  # Override listen address
  bastion run --listen 0.0.0.0:8080

  # Validate config without starting server
  bastion run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.policyFile, "policies", "", "override policy file path")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.policyFile != "" {
		cfg.Policy.FilePath = runFlags.policyFile
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Bastion v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Cancel background components (watcher, pruner) on shutdown
	// signals as well as on return.
	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Policy store
	policies, err := newPolicyStore(cfg)
	if err != nil {
		return err
	}
	defer policies.Close()

	// Seed and optionally watch the policy file
	if cfg.Policy.FilePath != "" {
		fileSource := source.NewFileSource(cfg.Policy.FilePath, logger)
		if err := fileSource.Sync(ctx, policies); err != nil {
			return fmt.Errorf("failed to load policy file: %w", err)
		}
		loaded, err := policies.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list policies: %w", err)
		}
		fmt.Printf("✓ Policies loaded (%d policies)\n", len(loaded))

		if cfg.Policy.Watch {
			watcher, err := source.NewWatcher(source.WatcherConfig{
				Path:             cfg.Policy.FilePath,
				DebounceInterval: cfg.Policy.WatchDebounce,
			}, logger)
			if err != nil {
				return fmt.Errorf("failed to create policy watcher: %w", err)
			}
			defer watcher.Stop()

			go func() {
				err := watcher.Watch(ctx, func() error {
					return fileSource.Sync(ctx, policies)
				})
				if err != nil {
					logger.Error("policy watcher stopped", "error", err)
				}
			}()
			fmt.Println("✓ Policy file watcher started")
		}
	}

	// Audit store and retention
	var records audit.Store
	var pruner *retention.Pruner
	if cfg.Audit.Enabled {
		records, err = newAuditStore(cfg)
		if err != nil {
			return err
		}
		defer records.Close()

		if cfg.Audit.Retention.Schedule != "" {
			pruner = retention.NewPruner(records, &retention.Config{
				RetentionDays: cfg.Audit.Retention.Days,
				PruneSchedule: cfg.Audit.Retention.Schedule,
				MaxRecords:    cfg.Audit.Retention.MaxRecords,
			})
			if err := pruner.Start(ctx); err != nil {
				logger.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
			}
		}

		fmt.Println("✓ Audit store initialized")
	}

	// Anomaly scorer with config table overrides merged over defaults
	scorer := scoring.NewReputationScorer(scoring.ReputationScorerConfig{
		Seed: cfg.Scoring.Seed,
	}, logger)
	for ip, score := range cfg.Scoring.SuspiciousIPs {
		scorer.AddSuspiciousIP(ip, score)
	}
	for port, score := range cfg.Scoring.SuspiciousPorts {
		scorer.AddSuspiciousPort(port, score)
	}

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	evaluator := evaluation.NewEvaluator(policies, scorer, records, collector, logger)

	srv := server.New(server.Options{
		Config:      &cfg.Server,
		Evaluator:   evaluator,
		Policies:    policies,
		Collector:   collector,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Version:     Version,
		Logger:      logger,
	})

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal or server error.
	return srv.Start(ctx)
}

// newPolicyStore builds the configured policy store backend.
func newPolicyStore(cfg *config.Config) (policystore.Store, error) {
	switch cfg.Policy.Backend {
	case config.BackendSQLite:
		store, err := policystore.NewSQLiteStore(cfg.Policy.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open policy store: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		return policystore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported policy backend: %s", cfg.Policy.Backend)
	}
}

// newAuditStore builds the configured audit store backend.
func newAuditStore(cfg *config.Config) (audit.Store, error) {
	switch cfg.Audit.Backend {
	case config.BackendSQLite:
		store, err := audit.NewSQLiteStore(&audit.SQLiteConfig{
			Path:         cfg.Audit.SQLite.Path,
			MaxOpenConns: cfg.Audit.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Audit.SQLite.MaxIdleConns,
			WALMode:      cfg.Audit.SQLite.WALMode,
			BusyTimeout:  cfg.Audit.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		return audit.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}
}
