// Bastion is an AI-driven firewall decision service.
//
// It evaluates network connections against an ordered policy set and,
// when policies are not conclusive, an anomaly scorer, exposing the
// pipeline over an HTTP API.
//
// Usage:
//
//	# Start server with default configuration
//	bastion run
//
//	# Start with custom configuration file
//	bastion run --config /path/to/config.yaml
//
//	# Validate a policy file
//	bastion validate --file policies.yaml
//
//	# Show version information
//	bastion version
package main

func main() {
	Execute()
}
