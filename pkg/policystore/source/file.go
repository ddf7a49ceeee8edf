package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"sentinel-hq/bastion/pkg/decision"
	"sentinel-hq/bastion/pkg/policystore"
)

// FileSource loads policies from a YAML file on disk. The file holds an
// ordered policy list; file order becomes evaluation order.
type FileSource struct {
	path   string
	logger *slog.Logger
}

// policyFile is the on-disk document shape.
type policyFile struct {
	Policies []decision.Policy `yaml:"policies"`
}

// NewFileSource creates a file-based policy source.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:   path,
		logger: logger.With("component", "policystore.source"),
	}
}

// Load reads and validates all policies from the file, preserving file
// order.
func (s *FileSource) Load(ctx context.Context) ([]decision.Policy, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", s.path, err)
	}

	var doc policyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %q: %w", s.path, err)
	}

	seen := make(map[string]struct{}, len(doc.Policies))
	for i, p := range doc.Policies {
		if err := validatePolicy(p); err != nil {
			return nil, fmt.Errorf("policy file %q entry %d: %w", s.path, i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("policy file %q: duplicate policy id %q", s.path, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	s.logger.Info("loaded policies from file",
		"path", s.path,
		"policy_count", len(doc.Policies),
	)

	return doc.Policies, nil
}

// Sync replaces the store contents with the file contents, keeping
// file order as creation order. The swap is atomic: an evaluation
// listing policies mid-reload sees either the old set or the new set,
// and a failed sync leaves the old set in place.
func (s *FileSource) Sync(ctx context.Context, store policystore.Store) error {
	policies, err := s.Load(ctx)
	if err != nil {
		return err
	}

	if err := store.Replace(ctx, policies); err != nil {
		return fmt.Errorf("failed to replace policy set: %w", err)
	}

	s.logger.Info("policy store synced from file",
		"path", s.path,
		"policy_count", len(policies),
	)

	return nil
}

// validatePolicy checks the structural invariants of a file entry.
func validatePolicy(p decision.Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy id cannot be empty")
	}
	if len(p.Conditions) == 0 {
		return fmt.Errorf("policy %q: conditions cannot be empty", p.ID)
	}
	switch p.Action {
	case decision.DecisionAllow, decision.DecisionAlert, decision.DecisionBlock:
	default:
		return fmt.Errorf("policy %q: unknown action %q", p.ID, p.Action)
	}
	for i, c := range p.Conditions {
		switch c.Field {
		case decision.FieldSourceIP, decision.FieldDestinationIP,
			decision.FieldDestinationPort, decision.FieldProtocol:
		default:
			return fmt.Errorf("policy %q condition %d: unknown field %q", p.ID, i, c.Field)
		}
		switch c.Operator {
		case decision.OperatorEqual, decision.OperatorNotEqual,
			decision.OperatorGreaterThan, decision.OperatorLessThan,
			decision.OperatorGreaterEqual, decision.OperatorLessEqual:
		default:
			return fmt.Errorf("policy %q condition %d: unknown operator %q", p.ID, i, c.Operator)
		}
	}
	return nil
}
