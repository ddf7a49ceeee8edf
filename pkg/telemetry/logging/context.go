package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ConnectionIDKey is the context key for connection identifiers.
	ConnectionIDKey contextKey = "connection_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithConnectionID adds a connection identifier to the context.
func WithConnectionID(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, ConnectionIDKey, connectionID)
}

// GetConnectionID retrieves the connection identifier from the context.
func GetConnectionID(ctx context.Context) string {
	if connectionID, ok := ctx.Value(ConnectionIDKey).(string); ok {
		return connectionID
	}
	return ""
}

// ContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func ContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if connectionID := GetConnectionID(ctx); connectionID != "" {
		fields = append(fields, "connection_id", connectionID)
	}

	return fields
}
