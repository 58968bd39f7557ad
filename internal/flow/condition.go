package flow

import (
	"math"
	"strconv"
	"strings"

	"github.com/botforge/flowengine/internal/domain"
)

// EvaluateCondition compares the rule's variable against its target value.
// A nil rule, an empty variable name, or an unknown operator evaluates to
// true, so malformed graphs still advance. A variable absent from the
// snapshot compares as the empty string.
func EvaluateCondition(rule *domain.ConditionRule, vars Vars) bool {
	if rule == nil || rule.Variable == "" {
		return true
	}

	value := vars[rule.Variable]
	target := rule.Value

	operator := rule.Operator
	if operator == "" {
		operator = domain.OpEquals
	}

	switch operator {
	case domain.OpEquals:
		return value == target
	case domain.OpNotEquals:
		return value != target
	case domain.OpGreater:
		return toNumber(value) > toNumber(target)
	case domain.OpLess:
		return toNumber(value) < toNumber(target)
	case domain.OpContains:
		return strings.Contains(value, target)
	default:
		return true
	}
}

// toNumber coerces a stored text value to a float. Non-numeric input yields
// NaN, which makes both greater and less comparisons false.
func toNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}
