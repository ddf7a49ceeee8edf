// Package policystore provides the policy store consumed by the
// evaluation pipeline. Stores hand out ordered snapshots: List returns
// policies in creation order, and that order is load-bearing: it
// decides the first-match tie-break during evaluation.
//
// Two backends are provided: an in-memory store for tests and ephemeral
// deployments, and a SQLite store for persistence across restarts.
package policystore
