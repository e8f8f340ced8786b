package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testContext() RequestContext {
	return RequestContext{
		Action:     "export",
		Resource:   "users",
		ResourceID: "42",
		UserID:     "u-7",
		UserRoles:  []string{"editor", "reviewer"},
		Metadata: map[string]any{
			"recordCount": float64(1500),
			"format":      "csv",
		},
	}
}

func evalCond(t *testing.T, field string, op Operator, value any) bool {
	t.Helper()
	return evaluateCondition(testContext(), Condition{Field: field, Operator: op, Value: value}, []string{"admin"})
}

func TestEqualityOperators(t *testing.T) {
	assert.True(t, evalCond(t, FieldAction, OpEqual, "export"))
	assert.False(t, evalCond(t, FieldAction, OpEqual, "delete"))
	assert.True(t, evalCond(t, FieldAction, OpNotEqual, "delete"))
	// Numeric equality across int and float64.
	assert.True(t, evalCond(t, "metadata.recordCount", OpEqual, 1500))
}

func TestNumericOperatorsAreNumericOnly(t *testing.T) {
	assert.True(t, evalCond(t, "metadata.recordCount", OpGreaterThan, 1000))
	assert.False(t, evalCond(t, "metadata.recordCount", OpGreaterThan, 2000))
	assert.True(t, evalCond(t, "metadata.recordCount", OpLessThan, 2000))
	// Non-numeric operands evaluate false, never error.
	assert.False(t, evalCond(t, "metadata.format", OpGreaterThan, 10))
	assert.False(t, evalCond(t, FieldAction, OpLessThan, "zzz"))
}

func TestMembershipOperators(t *testing.T) {
	assert.True(t, evalCond(t, FieldAction, OpIn, []any{"export", "delete"}))
	assert.False(t, evalCond(t, FieldAction, OpIn, []any{"create"}))
	assert.True(t, evalCond(t, FieldAction, OpNotIn, []any{"create"}))
	// A list-valued field is a member when any element matches.
	assert.True(t, evalCond(t, FieldUserRoles, OpIn, []any{"reviewer"}))
	// Non-list expected value is never a set.
	assert.False(t, evalCond(t, FieldAction, OpIn, "export"))
}

func TestContainsOperator(t *testing.T) {
	assert.True(t, evalCond(t, FieldUserID, OpContains, "u-"))
	assert.False(t, evalCond(t, FieldUserID, OpContains, "x"))
	// Element containment for list fields.
	assert.True(t, evalCond(t, FieldUserRoles, OpContains, "editor"))
	assert.False(t, evalCond(t, FieldUserRoles, OpContains, "admin"))
}

func TestMatchesOperatorSwallowsInvalidPatterns(t *testing.T) {
	assert.True(t, evalCond(t, FieldResource, OpMatches, "^use"))
	assert.False(t, evalCond(t, FieldResource, OpMatches, "^content"))
	// Invalid pattern evaluates to false instead of raising.
	assert.False(t, evalCond(t, FieldResource, OpMatches, "["))
	assert.False(t, evalCond(t, FieldResource, OpMatches, 42))
}

func TestComputedFields(t *testing.T) {
	assert.True(t, evalCond(t, FieldIsAuthenticated, OpEqual, true))
	assert.False(t, evalCond(t, FieldIsAdmin, OpEqual, true))

	rc := testContext()
	rc.UserRoles = append(rc.UserRoles, "admin")
	assert.True(t, evaluateCondition(rc, Condition{Field: FieldIsAdmin, Operator: OpEqual, Value: true}, []string{"admin"}))

	rc.UserID = ""
	assert.True(t, evaluateCondition(rc, Condition{Field: FieldIsAuthenticated, Operator: OpEqual, Value: false}, nil))
}

func TestUnknownFieldsAndMissingMetadataEvaluateFalse(t *testing.T) {
	assert.False(t, evalCond(t, "nonsense", OpEqual, "anything"))
	assert.False(t, evalCond(t, "metadata.absent", OpEqual, "anything"))
	assert.False(t, evalCond(t, FieldAction, Operator("regex"), "export"))
}
