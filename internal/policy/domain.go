package policy

import "time"

// Effect is the outcome of a policy evaluation.
type Effect string

const (
	// EffectAllow permits the action.
	EffectAllow Effect = "allow"
	// EffectWarn permits the action but surfaces a warning.
	EffectWarn Effect = "warn"
	// EffectBlock denies the action.
	EffectBlock Effect = "block"
)

// precedence orders effects; higher wins when reducing.
func (e Effect) precedence() int {
	switch e {
	case EffectBlock:
		return 2
	case EffectWarn:
		return 1
	case EffectAllow:
		return 0
	}
	return 0
}

// ReduceEffects collapses a list of effects into one by total precedence
// block > warn > allow. An empty list reduces to allow.
func ReduceEffects(effects []Effect) Effect {
	final := EffectAllow
	for _, e := range effects {
		if e.precedence() > final.precedence() {
			final = e
		}
	}
	return final
}

// Category tags a policy by the concern it serves.
type Category string

const (
	CategoryApproval    Category = "approval"
	CategoryAudit       Category = "audit"
	CategoryRateLimit   Category = "rate_limit"
	CategoryRestriction Category = "restriction"
	CategoryWarning     Category = "warning"
)

// Operator identifies a condition comparison.
type Operator string

const (
	OpEqual       Operator = "eq"
	OpNotEqual    Operator = "ne"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpMatches     Operator = "matches"
)

// Wildcard matches any action or resource in a policy's applicability sets.
const Wildcard = "*"

// Condition is a single (field, operator, value) triple evaluated against the
// request context.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// Policy is a data-defined rule: applicability sets, ordered conditions and an
// effect. Empty sets mean "any".
type Policy struct {
	ID         int64
	Name       string
	Actions    []string
	Resources  []string
	Roles      []string
	Conditions []Condition
	Effect     Effect
	Category   Category
	Message    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RequestContext is the snapshot a policy is evaluated against.
type RequestContext struct {
	Action     string
	Resource   string
	ResourceID string
	UserID     string
	UserRoles  []string
	Metadata   map[string]any
}

// Result is the outcome of evaluating all applicable policies.
type Result struct {
	Allowed          bool     `json:"allowed"`
	Effect           Effect   `json:"effect"`
	MatchedPolicies  []string `json:"matchedPolicies"`
	Messages         []string `json:"messages"`
	Warnings         []string `json:"warnings"`
	RequiresApproval bool     `json:"requiresApproval"`
}
