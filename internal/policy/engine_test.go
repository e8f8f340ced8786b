package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceEffects(t *testing.T) {
	assert.Equal(t, EffectBlock, ReduceEffects([]Effect{EffectAllow, EffectWarn, EffectBlock}))
	assert.Equal(t, EffectWarn, ReduceEffects([]Effect{EffectAllow, EffectWarn}))
	assert.Equal(t, EffectAllow, ReduceEffects([]Effect{EffectAllow}))
	assert.Equal(t, EffectAllow, ReduceEffects(nil))
}

func TestEvaluateCollectsMatchedPolicies(t *testing.T) {
	engine := NewEngine([]string{"admin"}, nil)
	policies := []Policy{
		{
			Name:     "warn-large-export",
			Actions:  []string{"export"},
			Effect:   EffectWarn,
			Category: CategoryWarning,
			Message:  "large export",
			Conditions: []Condition{
				{Field: "metadata.recordCount", Operator: OpGreaterThan, Value: 1000},
			},
		},
		{
			Name:      "block-user-export",
			Actions:   []string{"export"},
			Resources: []string{"users"},
			Effect:    EffectBlock,
			Category:  CategoryRestriction,
		},
		{
			Name:    "unrelated",
			Actions: []string{"publish"},
			Effect:  EffectBlock,
		},
	}
	rc := RequestContext{
		Action:    "export",
		Resource:  "users",
		UserID:    "u-1",
		UserRoles: []string{"editor"},
		Metadata:  map[string]any{"recordCount": float64(5000)},
	}

	result := engine.Evaluate(policies, rc)
	require.False(t, result.Allowed)
	assert.Equal(t, EffectBlock, result.Effect)
	assert.ElementsMatch(t, []string{"warn-large-export", "block-user-export"}, result.MatchedPolicies)
	assert.Equal(t, []string{"large export"}, result.Warnings)
	assert.Len(t, result.Messages, 1)
}

func TestEvaluateWarnStillAllows(t *testing.T) {
	engine := NewEngine(nil, nil)
	policies := []Policy{
		{Name: "warn-all", Effect: EffectWarn, Category: CategoryWarning, Message: "careful"},
	}
	result := engine.Evaluate(policies, RequestContext{Action: "update", Resource: "content"})
	assert.True(t, result.Allowed)
	assert.Equal(t, EffectWarn, result.Effect)
	assert.Equal(t, []string{"careful"}, result.Warnings)
}

func TestEvaluateNoPoliciesAllows(t *testing.T) {
	engine := NewEngine(nil, nil)
	result := engine.Evaluate(nil, RequestContext{Action: "update"})
	assert.True(t, result.Allowed)
	assert.Equal(t, EffectAllow, result.Effect)
	assert.Empty(t, result.MatchedPolicies)
}

func TestBypassRoleShortCircuits(t *testing.T) {
	engine := NewEngine(nil, []string{"superadmin"})
	policies := []Policy{
		{Name: "block-everything", Effect: EffectBlock, Category: CategoryRestriction},
	}
	result := engine.Evaluate(policies, RequestContext{
		Action:    "delete",
		Resource:  "content",
		UserRoles: []string{"superadmin"},
	})
	assert.True(t, result.Allowed)
	assert.Equal(t, EffectAllow, result.Effect)
	assert.Empty(t, result.MatchedPolicies)
}

func TestApplicability(t *testing.T) {
	engine := NewEngine(nil, nil)
	rc := RequestContext{Action: "export", Resource: "users", UserRoles: []string{"editor"}}

	// Wildcard action matches anything.
	assert.True(t, engine.Applies(Policy{Actions: []string{Wildcard}}, rc))
	// Empty sets match anything.
	assert.True(t, engine.Applies(Policy{}, rc))
	// Role set must intersect when present.
	assert.False(t, engine.Applies(Policy{Roles: []string{"admin"}}, rc))
	assert.True(t, engine.Applies(Policy{Roles: []string{"editor", "admin"}}, rc))
	// All conditions must hold.
	assert.False(t, engine.Applies(Policy{Conditions: []Condition{
		{Field: FieldAction, Operator: OpEqual, Value: "export"},
		{Field: FieldResource, Operator: OpEqual, Value: "content"},
	}}, rc))
}

func TestValidateConditions(t *testing.T) {
	problems := ValidateConditions([]Condition{
		{Field: "bogus", Operator: OpEqual, Value: 1},
		{Field: FieldAction, Operator: Operator("like"), Value: "x"},
		{Field: "metadata.anything", Operator: OpIn, Value: []any{"a"}},
	})
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], "conditions[0].field")
	assert.Contains(t, problems[1], "conditions[1].operator")
}
