package rules

import (
	"regexp"
	"strings"
)

// Condition operators supported by structured rules
const (
	OpContains    = "contains"
	OpEquals      = "equals"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpRegex       = "regex"
	OpNotContains = "not_contains"
	OpNotEquals   = "not_equals"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
)

// Condition is a single field/operator/value test within a structured rule
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// EvaluateCondition tests a resolved field value against an operator and a
// comparison value. Both sides are case-folded first. It is a pure function
// and never fails: an unknown operator or a malformed regex pattern simply
// yields false.
func EvaluateCondition(fieldValue, operator, value string) bool {
	fieldValue = strings.ToLower(fieldValue)
	value = strings.ToLower(value)

	switch operator {
	case OpContains:
		return strings.Contains(fieldValue, value)
	case OpEquals:
		return fieldValue == value
	case OpStartsWith:
		return strings.HasPrefix(fieldValue, value)
	case OpEndsWith:
		return strings.HasSuffix(fieldValue, value)
	case OpRegex:
		re, err := regexp.Compile("(?i)" + value)
		if err != nil {
			return false
		}
		return re.MatchString(fieldValue)
	case OpNotContains:
		return !strings.Contains(fieldValue, value)
	case OpNotEquals:
		return fieldValue != value
	case OpIsEmpty:
		return strings.TrimSpace(fieldValue) == ""
	case OpIsNotEmpty:
		return strings.TrimSpace(fieldValue) != ""
	}

	return false
}
