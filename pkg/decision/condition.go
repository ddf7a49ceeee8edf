package decision

import "strconv"

// EvaluateCondition evaluates a single condition against a connection.
//
// The connection field is resolved to its string form (the port renders
// as its decimal representation). Equality operators compare strings
// exactly; ordering operators parse both sides as float64 and compare
// numerically. A malformed condition never produces an error: an unknown
// field or a non-numeric operand under an ordering operator evaluates to
// false.
func EvaluateCondition(cond Condition, conn Connection) bool {
	value, ok := resolveField(cond.Field, conn)
	if !ok {
		return false
	}

	switch cond.Operator {
	case OperatorEqual:
		return value == cond.Value
	case OperatorNotEqual:
		return value != cond.Value
	case OperatorGreaterThan, OperatorLessThan, OperatorGreaterEqual, OperatorLessEqual:
		return compareNumeric(cond.Operator, value, cond.Value)
	default:
		return false
	}
}

// resolveField maps a condition field to the corresponding connection
// value. Unknown fields report !ok rather than an error.
func resolveField(field Field, conn Connection) (string, bool) {
	switch field {
	case FieldSourceIP:
		return conn.SourceIP, true
	case FieldDestinationIP:
		return conn.DestinationIP, true
	case FieldDestinationPort:
		return strconv.Itoa(conn.DestinationPort), true
	case FieldProtocol:
		return string(conn.Protocol), true
	default:
		return "", false
	}
}

// compareNumeric parses both sides as float64 and applies the ordering
// operator. Either side failing to parse degrades to no match; policy
// authors are responsible for pairing numeric operators with numeric
// fields.
func compareNumeric(op Operator, actual, expected string) bool {
	actualNum, err := strconv.ParseFloat(actual, 64)
	if err != nil {
		return false
	}
	expectedNum, err := strconv.ParseFloat(expected, 64)
	if err != nil {
		return false
	}

	switch op {
	case OperatorGreaterThan:
		return actualNum > expectedNum
	case OperatorLessThan:
		return actualNum < expectedNum
	case OperatorGreaterEqual:
		return actualNum >= expectedNum
	case OperatorLessEqual:
		return actualNum <= expectedNum
	default:
		return false
	}
}
