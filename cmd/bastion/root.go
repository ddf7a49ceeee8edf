package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bastion",
	Short: "Bastion - AI-driven firewall decision service",
	Long: `Bastion is a firewall decision service that evaluates network
connections against an ordered policy set and an anomaly scorer.

It exposes an HTTP API providing:
  - Two-phase connection evaluation (policies first, scoring only when needed)
  - Policy CRUD with first-match-wins ordering
  - Connection audit records with retention pruning
  - Prometheus metrics and structured logging`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
