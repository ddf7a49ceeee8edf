// Package cli provides shared helpers for the bastion command line:
// output formatting, command error types and signal handling.
package cli
