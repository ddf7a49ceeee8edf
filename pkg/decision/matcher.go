package decision

// PolicyMatches reports whether a policy matches a connection. A
// policy's conditions are combined with OR: the first condition that
// evaluates true short-circuits the scan.
func PolicyMatches(p Policy, conn Connection) bool {
	for _, cond := range p.Conditions {
		if EvaluateCondition(cond, conn) {
			return true
		}
	}
	return false
}

// FindMatch returns the first policy in the supplied order that matches
// the connection, or nil if none does. The input order is load-bearing:
// it decides the tie-break among multiple matching policies, so the
// matcher never reorders or deduplicates the slice.
func FindMatch(conn Connection, policies []Policy) *Policy {
	for i := range policies {
		if PolicyMatches(policies[i], conn) {
			return &policies[i]
		}
	}
	return nil
}
