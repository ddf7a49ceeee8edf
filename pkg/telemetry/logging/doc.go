// Package logging builds the structured loggers used across the
// service and carries request-scoped identifiers through context.
package logging
