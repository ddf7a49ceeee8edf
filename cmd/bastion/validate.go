package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sentinel-hq/bastion/pkg/policystore/source"
)

var validateFlags struct {
	file string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a policy file",
	Long: `Check a YAML policy file for errors without starting the server.

The validate command parses the file and verifies every policy:
  - non-empty policy ids, unique across the file
  - at least one condition per policy
  - known fields, operators and actions

Examples:
  # Validate a policy file
  bastion validate --file policies.yaml`,
	RunE: validatePolicies,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.file, "file", "f", "", "policy file to validate (required)")
	_ = validateCmd.MarkFlagRequired("file")
}

func validatePolicies(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	fileSource := source.NewFileSource(validateFlags.file, logger)
	policies, err := fileSource.Load(context.Background())
	if err != nil {
		return fmt.Errorf("policy file invalid: %w", err)
	}

	fmt.Printf("✓ %s is valid (%d policies)\n", validateFlags.file, len(policies))
	for _, p := range policies {
		fmt.Printf("  %s: %d condition(s) → %s\n", p.ID, len(p.Conditions), p.Action)
	}
	return nil
}
