package policy

import "fmt"

// Engine evaluates data-defined policies against a request context. It holds
// no state beyond its configuration and is safe for concurrent use.
type Engine struct {
	adminRoles  []string
	bypassRoles []string
}

// NewEngine constructs an Engine. adminRoles feeds the is_admin computed
// field; bypassRoles short-circuit evaluation to allow.
func NewEngine(adminRoles, bypassRoles []string) *Engine {
	return &Engine{adminRoles: adminRoles, bypassRoles: bypassRoles}
}

// Evaluate runs every applicable policy, collects effects and reduces them to
// one final effect by precedence. The request is allowed unless the final
// effect is block.
func (e *Engine) Evaluate(policies []Policy, rc RequestContext) Result {
	if intersects(rc.UserRoles, e.bypassRoles) {
		return Result{Allowed: true, Effect: EffectAllow, MatchedPolicies: []string{}, Messages: []string{}, Warnings: []string{}}
	}

	result := Result{MatchedPolicies: []string{}, Messages: []string{}, Warnings: []string{}}
	var effects []Effect
	for _, p := range policies {
		if !e.Applies(p, rc) {
			continue
		}
		effects = append(effects, p.Effect)
		result.MatchedPolicies = append(result.MatchedPolicies, p.Name)
		if p.Category == CategoryApproval {
			result.RequiresApproval = true
		}
		msg := p.Message
		if msg == "" {
			msg = fmt.Sprintf("policy %q matched with effect %s", p.Name, p.Effect)
		}
		if p.Effect == EffectWarn {
			result.Warnings = append(result.Warnings, msg)
		} else {
			result.Messages = append(result.Messages, msg)
		}
	}
	result.Effect = ReduceEffects(effects)
	result.Allowed = result.Effect != EffectBlock
	return result
}

// Applies reports whether a policy matches the request context: action and
// resource sets (empty = any, wildcard supported), role intersection (empty =
// any), and every condition true.
func (e *Engine) Applies(p Policy, rc RequestContext) bool {
	if !setMatches(p.Actions, rc.Action) {
		return false
	}
	if !setMatches(p.Resources, rc.Resource) {
		return false
	}
	if len(p.Roles) > 0 && !intersects(rc.UserRoles, p.Roles) {
		return false
	}
	for _, cond := range p.Conditions {
		if !evaluateCondition(rc, cond, e.adminRoles) {
			return false
		}
	}
	return true
}

func setMatches(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, member := range set {
		if member == Wildcard || member == value {
			return true
		}
	}
	return false
}

// ValidateConditions checks stored conditions for unknown fields or
// operators. It returns one error message per offending condition, keyed for
// field-level reporting.
func ValidateConditions(conds []Condition) []string {
	var problems []string
	for i, c := range conds {
		if !KnownField(c.Field) {
			problems = append(problems, fmt.Sprintf("conditions[%d].field: unknown field %q", i, c.Field))
		}
		switch c.Operator {
		case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpIn, OpNotIn, OpContains, OpMatches:
		default:
			problems = append(problems, fmt.Sprintf("conditions[%d].operator: unknown operator %q", i, c.Operator))
		}
	}
	return problems
}
