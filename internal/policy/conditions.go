package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// evaluateCondition resolves the condition's field and applies its operator.
// Unknown fields, unknown operators and invalid regular expressions all
// evaluate to false rather than raising.
func evaluateCondition(rc RequestContext, cond Condition, adminRoles []string) bool {
	actual, ok := resolveField(rc, cond.Field, adminRoles)
	if !ok {
		return false
	}
	switch cond.Operator {
	case OpEqual:
		return looseEqual(actual, cond.Value)
	case OpNotEqual:
		return !looseEqual(actual, cond.Value)
	case OpGreaterThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case OpLessThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	case OpIn:
		return inSet(actual, cond.Value)
	case OpNotIn:
		return !inSet(actual, cond.Value)
	case OpContains:
		return containsValue(actual, cond.Value)
	case OpMatches:
		pattern, ok := cond.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(stringify(actual))
	}
	return false
}

// looseEqual compares numerically when both sides are numeric, otherwise by
// string representation. This keeps JSON-sourced values (float64) comparable
// with stored ints.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

// inSet reports membership of actual in the expected value set. When actual
// is itself a list (user_roles), any element counts.
func inSet(actual, expected any) bool {
	set := valueList(expected)
	if set == nil {
		return false
	}
	for _, candidate := range valuesOf(actual) {
		for _, member := range set {
			if looseEqual(candidate, member) {
				return true
			}
		}
	}
	return false
}

// containsValue implements substring containment for strings and element
// containment for lists.
func containsValue(actual, expected any) bool {
	if list := valueList(actual); list != nil {
		for _, member := range list {
			if looseEqual(member, expected) {
				return true
			}
		}
		return false
	}
	return strings.Contains(stringify(actual), stringify(expected))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	}
	return fmt.Sprint(v)
}

// valueList normalises a value into a slice, or nil when it is not list-like.
func valueList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	}
	return nil
}

// valuesOf returns the elements of a list-like value, or the value itself as
// a single-element slice.
func valuesOf(v any) []any {
	if list := valueList(v); list != nil {
		return list
	}
	return []any{v}
}
