package rbac

import "time"

// ScopeGlobal is the scope kind that matches any requested scope.
const ScopeGlobal = "global"

// Role represents a high-level permission grouping. Priority orders roles by
// seniority (higher = more senior); it does not grant inheritance.
type Role struct {
	ID          int64
	Name        string
	Priority    int
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability held by a role. A role may hold
// both an allow and an explicit deny for the same action/resource.
type Permission struct {
	ID         int64
	RoleID     int64
	RoleName   string
	Action     string
	Resource   string
	ScopeKind  string
	ScopeValue string
	IsAllowed  bool
	CreatedAt  time.Time
}

// Assignment links a user to a role.
type Assignment struct {
	UserID    string
	RoleID    int64
	CreatedAt time.Time
}
