package decision

import "testing"

// TestPolicyMatches_ORSemantics verifies a policy matches as soon as any
// single condition matches, regardless of position.
func TestPolicyMatches_ORSemantics(t *testing.T) {
	conn := testConnection()

	policy := Policy{
		ID: "P-OR",
		Conditions: []Condition{
			{Field: FieldSourceIP, Operator: OperatorEqual, Value: "172.16.0.1"},
			{Field: FieldDestinationPort, Operator: OperatorEqual, Value: "8080"},
			{Field: FieldProtocol, Operator: OperatorEqual, Value: "TCP"},
		},
		Action: DecisionBlock,
	}

	if !PolicyMatches(policy, conn) {
		t.Fatal("PolicyMatches() = false, want true when only the third condition matches")
	}

	// No condition matches.
	policy.Conditions[2].Value = "UDP"
	if PolicyMatches(policy, conn) {
		t.Fatal("PolicyMatches() = true, want false when no condition matches")
	}
}

// TestFindMatch_FirstMatchWins verifies the first policy in input order
// wins the tie-break, and that reordering changes the result.
func TestFindMatch_FirstMatchWins(t *testing.T) {
	conn := testConnection()

	allowAll := Policy{
		ID:         "P-ALLOW",
		Conditions: []Condition{{Field: FieldProtocol, Operator: OperatorEqual, Value: "TCP"}},
		Action:     DecisionAllow,
	}
	blockHTTPS := Policy{
		ID:         "P-BLOCK",
		Conditions: []Condition{{Field: FieldDestinationPort, Operator: OperatorEqual, Value: "443"}},
		Action:     DecisionBlock,
	}

	got := FindMatch(conn, []Policy{allowAll, blockHTTPS})
	if got == nil || got.ID != "P-ALLOW" {
		t.Fatalf("FindMatch() = %v, want P-ALLOW first", got)
	}

	got = FindMatch(conn, []Policy{blockHTTPS, allowAll})
	if got == nil || got.ID != "P-BLOCK" {
		t.Fatalf("FindMatch() = %v, want P-BLOCK first after reorder", got)
	}
}

// TestFindMatch_NoMatch verifies nil is returned when nothing matches.
func TestFindMatch_NoMatch(t *testing.T) {
	conn := testConnection()

	policies := []Policy{
		{
			ID:         "P-1",
			Conditions: []Condition{{Field: FieldDestinationPort, Operator: OperatorEqual, Value: "22"}},
			Action:     DecisionBlock,
		},
	}

	if got := FindMatch(conn, policies); got != nil {
		t.Errorf("FindMatch() = %v, want nil", got)
	}

	if got := FindMatch(conn, nil); got != nil {
		t.Errorf("FindMatch() with empty list = %v, want nil", got)
	}
}

// TestFindMatch_Deterministic verifies repeated calls with the same
// inputs return the same policy.
func TestFindMatch_Deterministic(t *testing.T) {
	conn := testConnection()

	policies := []Policy{
		{
			ID:         "P-A",
			Conditions: []Condition{{Field: FieldProtocol, Operator: OperatorEqual, Value: "TCP"}},
			Action:     DecisionAlert,
		},
		{
			ID:         "P-B",
			Conditions: []Condition{{Field: FieldProtocol, Operator: OperatorEqual, Value: "TCP"}},
			Action:     DecisionBlock,
		},
	}

	for i := 0; i < 10; i++ {
		got := FindMatch(conn, policies)
		if got == nil || got.ID != "P-A" {
			t.Fatalf("FindMatch() iteration %d = %v, want P-A", i, got)
		}
	}
}
