package rbac

// HasPermission decides whether the given permission snapshot grants action on
// resource within the requested scope. Evaluation is a pure union over the
// permissions of the directly assigned roles; no priority-based inheritance.
//
// An explicit deny matching action+resource+scope always wins over any
// co-existing allow. Unknown actions or resources simply match nothing and
// result in denial.
func HasPermission(perms []Permission, action, resource, scopeKind, scopeValue string) bool {
	matched := false
	for _, p := range perms {
		if p.Action != action || p.Resource != resource {
			continue
		}
		if !scopeMatches(p, scopeKind, scopeValue) {
			continue
		}
		if !p.IsAllowed {
			return false
		}
		matched = true
	}
	return matched
}

// scopeMatches reports whether a permission's scope covers the requested one.
// A global permission matches any requested scope. A scoped permission matches
// only on equal scope kind; when it also carries a scope value, the values
// must be equal, otherwise it matches every value of that kind.
func scopeMatches(p Permission, scopeKind, scopeValue string) bool {
	if p.ScopeKind == ScopeGlobal || p.ScopeKind == "" {
		return true
	}
	if p.ScopeKind != scopeKind {
		return false
	}
	if p.ScopeValue == "" {
		return true
	}
	return p.ScopeValue == scopeValue
}
