package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func perm(role, action, resource, scopeKind, scopeValue string, allowed bool) Permission {
	return Permission{
		RoleName:   role,
		Action:     action,
		Resource:   resource,
		ScopeKind:  scopeKind,
		ScopeValue: scopeValue,
		IsAllowed:  allowed,
	}
}

func TestHasPermissionAllows(t *testing.T) {
	perms := []Permission{
		perm("editor", "update", "content", ScopeGlobal, "", true),
	}
	assert.True(t, HasPermission(perms, "update", "content", "", ""))
	assert.True(t, HasPermission(perms, "update", "content", "site", "blog"))
}

func TestHasPermissionDeniesWithoutMatch(t *testing.T) {
	perms := []Permission{
		perm("editor", "update", "content", ScopeGlobal, "", true),
	}
	assert.False(t, HasPermission(perms, "delete", "content", "", ""))
	assert.False(t, HasPermission(perms, "update", "media", "", ""))
	assert.False(t, HasPermission(nil, "update", "content", "", ""))
}

func TestWildcardGrantMatchesNothing(t *testing.T) {
	// Action and resource match by equality only; a stored "*" is an opaque
	// string, not a pattern, and grants nothing.
	perms := []Permission{
		perm("admin", "*", "*", ScopeGlobal, "", true),
	}
	assert.False(t, HasPermission(perms, "manage", "roles", "", ""))
	assert.False(t, HasPermission(perms, "read", "audit", "", ""))

	perms = append(perms, perm("admin", "manage", "roles", ScopeGlobal, "", true))
	assert.True(t, HasPermission(perms, "manage", "roles", "", ""))
}

func TestExplicitDenyWinsOverAllow(t *testing.T) {
	perms := []Permission{
		perm("editor", "delete", "content", ScopeGlobal, "", true),
		perm("contractor", "delete", "content", "site", "blog", false),
	}
	// Deny matches the requested scope: whole request denied despite the
	// broader allow.
	assert.False(t, HasPermission(perms, "delete", "content", "site", "blog"))
	// Deny does not match this scope value, allow still applies.
	assert.True(t, HasPermission(perms, "delete", "content", "site", "docs"))
}

func TestGlobalDenyWinsRegardlessOfScopeBreadth(t *testing.T) {
	perms := []Permission{
		perm("editor", "publish", "content", "site", "blog", true),
		perm("restricted", "publish", "content", ScopeGlobal, "", false),
	}
	assert.False(t, HasPermission(perms, "publish", "content", "site", "blog"))
}

func TestScopedPermissionWithoutValueMatchesAllValues(t *testing.T) {
	perms := []Permission{
		perm("editor", "update", "content", "site", "", true),
	}
	assert.True(t, HasPermission(perms, "update", "content", "site", "blog"))
	assert.True(t, HasPermission(perms, "update", "content", "site", "docs"))
	assert.False(t, HasPermission(perms, "update", "content", "workspace", "blog"))
}

func TestScopedPermissionRequiresEqualKind(t *testing.T) {
	perms := []Permission{
		perm("editor", "update", "content", "site", "blog", true),
	}
	assert.False(t, HasPermission(perms, "update", "content", "", ""))
	assert.False(t, HasPermission(perms, "update", "content", "site", "docs"))
	assert.True(t, HasPermission(perms, "update", "content", "site", "blog"))
}
