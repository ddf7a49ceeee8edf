// Package evaluation runs connections through the two-phase decision
// pipeline: policy matching first, anomaly scoring only when policies
// are not conclusive. Each evaluation invokes the scorer zero or one
// times and persists a connection record for audit.
package evaluation
