package policy

import "strings"

// Known context fields. Field resolution is a closed enumeration plus the
// explicit "metadata.*" escape hatch; there is no reflection over arbitrary
// request objects.
const (
	FieldAction          = "action"
	FieldResource        = "resource"
	FieldResourceID      = "resource_id"
	FieldUserID          = "user_id"
	FieldUserRoles       = "user_roles"
	FieldIsAuthenticated = "is_authenticated"
	FieldIsAdmin         = "is_admin"

	metadataPrefix = "metadata."
)

// KnownField reports whether the field name resolves against the context.
func KnownField(field string) bool {
	switch field {
	case FieldAction, FieldResource, FieldResourceID, FieldUserID, FieldUserRoles, FieldIsAuthenticated, FieldIsAdmin:
		return true
	}
	return strings.HasPrefix(field, metadataPrefix)
}

// resolveField looks up a condition field in the request context. adminRoles
// feeds the is_admin computed field. The second return is false when the
// field is unknown or the metadata key is absent.
func resolveField(rc RequestContext, field string, adminRoles []string) (any, bool) {
	switch field {
	case FieldAction:
		return rc.Action, true
	case FieldResource:
		return rc.Resource, true
	case FieldResourceID:
		return rc.ResourceID, true
	case FieldUserID:
		return rc.UserID, true
	case FieldUserRoles:
		return rc.UserRoles, true
	case FieldIsAuthenticated:
		return rc.UserID != "", true
	case FieldIsAdmin:
		return intersects(rc.UserRoles, adminRoles), true
	}
	if key, ok := strings.CutPrefix(field, metadataPrefix); ok {
		v, present := rc.Metadata[key]
		return v, present
	}
	return nil, false
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
