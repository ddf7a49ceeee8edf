// Package middleware provides the HTTP middleware chain for the
// bastion API: request IDs, structured request logging, panic
// recovery, CORS, per-request timeouts and request metrics.
package middleware
