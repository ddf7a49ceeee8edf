package decision

import "time"

// Decision is the final security verdict for a connection.
type Decision string

const (
	// DecisionAllow permits the connection.
	DecisionAllow Decision = "allow"

	// DecisionAlert permits the connection but flags it for review.
	DecisionAlert Decision = "alert"

	// DecisionBlock rejects the connection.
	DecisionBlock Decision = "block"
)

// Protocol is the transport protocol of a connection.
type Protocol string

const (
	ProtocolTCP Protocol = "TCP"
	ProtocolUDP Protocol = "UDP"
)

// Field identifies the connection attribute a condition tests.
type Field string

const (
	FieldSourceIP        Field = "source_ip"
	FieldDestinationIP   Field = "destination_ip"
	FieldDestinationPort Field = "destination_port"
	FieldProtocol        Field = "protocol"
)

// Operator is the comparison applied between a connection field and a
// condition value.
type Operator string

const (
	OperatorEqual        Operator = "="
	OperatorNotEqual     Operator = "!="
	OperatorGreaterThan  Operator = ">"
	OperatorLessThan     Operator = "<"
	OperatorGreaterEqual Operator = ">="
	OperatorLessEqual    Operator = "<="
)

// Connection describes one network connection attempt. It is created by
// the caller at ingress and never mutated by the core.
type Connection struct {
	// SourceIP is the address of the initiating host.
	SourceIP string `json:"source_ip" yaml:"source_ip"`

	// DestinationIP is the address of the target host.
	DestinationIP string `json:"destination_ip" yaml:"destination_ip"`

	// DestinationPort is the target port, validated 1-65535 by the caller.
	DestinationPort int `json:"destination_port" yaml:"destination_port"`

	// Protocol is TCP or UDP.
	Protocol Protocol `json:"protocol" yaml:"protocol"`

	// Timestamp is when the connection was observed.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Condition is a single field/operator/value test against a connection.
type Condition struct {
	// Field is the connection attribute to test.
	Field Field `json:"field" yaml:"field"`

	// Operator is the comparison to apply.
	Operator Operator `json:"operator" yaml:"operator"`

	// Value is compared after a field-appropriate coercion: exact string
	// comparison for = and !=, float64 parsing for the ordering operators.
	Value string `json:"value" yaml:"value"`
}

// Policy is a named, ordered set of OR-combined conditions plus the
// action taken when any one of them matches.
type Policy struct {
	// ID uniquely identifies the policy. Opaque to the core.
	ID string `json:"policy_id" yaml:"policy_id"`

	// Conditions is non-empty; a single match is sufficient for the
	// policy to match.
	Conditions []Condition `json:"conditions" yaml:"conditions"`

	// Action is the decision this policy contributes when it matches.
	Action Decision `json:"action" yaml:"action"`
}

// Status tags an Outcome as final or provisional. A provisional outcome
// carries no usable decision; the caller must re-invoke Decide with a
// score before acting on it.
type Status string

const (
	// StatusResolved marks a final outcome.
	StatusResolved Status = "resolved"

	// StatusNeedsScore marks a provisional phase-1 outcome that requires
	// an anomaly score to resolve.
	StatusNeedsScore Status = "needs_score"
)

// Outcome is the result of one Decide call.
type Outcome struct {
	// Decision is the verdict. Meaningful only when Status is
	// StatusResolved.
	Decision Decision

	// MatchedPolicyID is the id of the policy that contributed to the
	// decision, empty when no policy matched. Preserved across both
	// phases for audit even when the score determined the outcome.
	MatchedPolicyID string

	// NeedsScore is true only on a phase-1 outcome that cannot resolve
	// without an anomaly score.
	NeedsScore bool

	// Status tags the outcome as resolved or provisional.
	Status Status
}
