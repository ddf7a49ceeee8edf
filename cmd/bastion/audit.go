package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sentinel-hq/bastion/pkg/audit"
	"sentinel-hq/bastion/pkg/cli"
	"sentinel-hq/bastion/pkg/config"
)

var auditFlags struct {
	limit     int
	decision  string
	since     time.Duration
	format    string
	output    string
	olderThan time.Duration
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the connection audit trail",
	Long: `Query and prune the audit trail of evaluated connections.

Subcommands:
  list   - List evaluated connections with optional filters
  prune  - Delete records older than a cutoff

Examples:
  # Show the 50 most recent evaluations
  bastion audit list --limit 50

  # Export blocked connections from the last day as CSV
  bastion audit list --decision block --since 24h --format csv -o blocked.csv

  # Delete everything older than 90 days
  bastion audit prune --older-than 2160h`,
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evaluated connections",
	RunE:  listAuditRecords,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit records",
	RunE:  pruneAuditRecords,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd, auditPruneCmd)

	auditListCmd.Flags().IntVar(&auditFlags.limit, "limit", 100, "max results (0 for all)")
	auditListCmd.Flags().StringVar(&auditFlags.decision, "decision", "", "filter by decision (allow, alert, block)")
	auditListCmd.Flags().DurationVar(&auditFlags.since, "since", 0, "only records newer than this age (e.g. 24h)")
	auditListCmd.Flags().StringVar(&auditFlags.format, "format", "text", "output format: text, json, csv")
	auditListCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "", "output file (default: stdout)")

	auditPruneCmd.Flags().DurationVar(&auditFlags.olderThan, "older-than", 0, "delete records older than this age (e.g. 720h)")
	auditPruneCmd.MarkFlagRequired("older-than")
}

// openAuditStore opens the audit backend named by the configuration.
// The audit trail lives on disk, so the memory backend has nothing to
// show here and is rejected.
func openAuditStore() (audit.Store, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	if !cfg.Audit.Enabled {
		return nil, cli.NewConfigError("audit.enabled", "audit trail is disabled")
	}
	if cfg.Audit.Backend != config.BackendSQLite {
		return nil, cli.NewConfigError("audit.backend",
			fmt.Sprintf("backend %q has no persistent records to query", cfg.Audit.Backend))
	}

	return audit.NewSQLiteStore(&audit.SQLiteConfig{
		Path:         cfg.Audit.SQLite.Path,
		MaxOpenConns: cfg.Audit.SQLite.MaxOpenConns,
		MaxIdleConns: cfg.Audit.SQLite.MaxIdleConns,
		WALMode:      cfg.Audit.SQLite.WALMode,
		BusyTimeout:  cfg.Audit.SQLite.BusyTimeout,
	})
}

func listAuditRecords(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditFlags.format)
	if err != nil {
		return err
	}

	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	records, err := store.List(ctx, auditFlags.limit)
	if err != nil {
		return cli.NewCommandError("audit list", err)
	}

	if auditFlags.decision != "" || auditFlags.since > 0 {
		cutoff := time.Now().Add(-auditFlags.since)
		filtered := records[:0]
		for _, rec := range records {
			if auditFlags.decision != "" && !strings.EqualFold(string(rec.Decision), auditFlags.decision) {
				continue
			}
			if auditFlags.since > 0 && rec.EvaluatedAt.Before(cutoff) {
				continue
			}
			filtered = append(filtered, rec)
		}
		records = filtered
	}

	output := os.Stdout
	if auditFlags.output != "" {
		output, err = os.Create(auditFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	switch format {
	case cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(output, records)
	case cli.FormatCSV:
		formatter := &cli.CSVFormatter{Headers: []string{
			"connection_id", "source_ip", "destination_ip", "destination_port",
			"protocol", "decision", "anomaly_score", "matched_policy_id", "evaluated_at",
		}}
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, []string{
				rec.ConnectionID,
				rec.Connection.SourceIP,
				rec.Connection.DestinationIP,
				strconv.Itoa(rec.Connection.DestinationPort),
				string(rec.Connection.Protocol),
				string(rec.Decision),
				strconv.FormatFloat(rec.AnomalyScore, 'f', 4, 64),
				rec.MatchedPolicyID,
				rec.EvaluatedAt.Format(time.RFC3339),
			})
		}
		return formatter.FormatTo(output, rows)
	default:
		return printAuditText(output, records)
	}
}

func printAuditText(w *os.File, records []*audit.ConnectionRecord) error {
	fmt.Fprintf(w, "%d record(s)\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(w, "%s  %s -> %s:%d/%s  %s",
			rec.EvaluatedAt.Format(time.RFC3339),
			rec.Connection.SourceIP,
			rec.Connection.DestinationIP,
			rec.Connection.DestinationPort,
			rec.Connection.Protocol,
			rec.Decision,
		)
		if rec.MatchedPolicyID != "" {
			fmt.Fprintf(w, "  policy=%s", rec.MatchedPolicyID)
		}
		if rec.AnomalyScore > 0 {
			fmt.Fprintf(w, "  score=%.2f", rec.AnomalyScore)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func pruneAuditRecords(cmd *cobra.Command, args []string) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cutoff := time.Now().Add(-auditFlags.olderThan)
	deleted, err := store.Prune(context.Background(), cutoff)
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Printf("✓ Deleted %d record(s) older than %s\n", deleted, cutoff.Format(time.RFC3339))
	return nil
}
