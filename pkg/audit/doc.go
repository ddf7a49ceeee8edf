// Package audit persists the outcome of every evaluated connection
// (the original descriptor, the decision, the anomaly score actually
// used, and the matched policy) so past verdicts can be retrieved and
// reviewed. Retention of old records is handled by pkg/audit/retention.
package audit
