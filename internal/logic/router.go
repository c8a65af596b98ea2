package logic

import "strings"

// Router matches updates against the configured rules and feeds each match
// to the gate.
type Router struct {
	gate *Gate
}

// NewRouter creates a router that evaluates matches on gate.
func NewRouter(gate *Gate) *Router {
	return &Router{gate: gate}
}

// Route evaluates msg against every rule whose Param is a suffix of the
// address. Rules are checked in order and never short-circuit. A message
// without a numeric first argument is dropped and returns nil.
func (r *Router) Route(rs Ruleset, msg Update) []Action {
	value, ok := NumericValue(msg.Arguments)
	if !ok {
		return nil
	}

	var actions []Action
	for _, rule := range rs.Rules {
		if rule.Param == "" || !strings.HasSuffix(msg.Address, rule.Param) {
			continue
		}
		actions = append(actions, r.gate.Evaluate(rs, rule, value))
	}
	return actions
}

// NumericValue extracts the first argument as a float64.
// Booleans map to 1 and 0 so avatar bool parameters compare against
// thresholds like numbers.
func NumericValue(args []any) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}

	switch v := args[0].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
