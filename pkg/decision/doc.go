// Package decision implements the firewall decision core: condition
// evaluation, first-match policy resolution, anomaly-score thresholding,
// and the two-phase protocol that decides whether a scoring pass is
// required before a connection can be classified.
//
// Everything in this package is a pure function of its inputs. No state
// crosses evaluations, so any number of connections may be evaluated
// concurrently without locking. The policy snapshot and the anomaly
// scorer are owned by the caller (see pkg/policystore and pkg/scoring).
package decision
