// Package config defines the bastion service configuration, loaded
// from YAML with defaults applied and optional environment variable
// overrides (BASTION_SECTION_FIELD).
package config
