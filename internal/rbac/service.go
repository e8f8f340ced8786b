package rbac

import (
	"context"
	"errors"
	"strings"
)

// RepositoryPort defines data access methods for RBAC.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name string, priority int, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	CreatePermission(ctx context.Context, p Permission) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	PermissionsForRoles(ctx context.Context, roleNames []string) ([]Permission, error)
	AssignRole(ctx context.Context, userID string, roleID int64) error
	RemoveRole(ctx context.Context, userID string, roleID int64) error
	RolesForUser(ctx context.Context, userID string) ([]string, error)
	AdminRoleNames(ctx context.Context, minPriority int) ([]string, error)
}

// Service orchestrates RBAC operations.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name string, priority int, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	if priority <= 0 {
		return Role{}, errors.New("rbac: role priority must be positive")
	}
	return s.repo.CreateRole(ctx, name, priority, description)
}

// DeleteRole removes a role; assignments and permissions cascade.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// CreatePermission attaches a permission to a role.
func (s *Service) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	if p.RoleID == 0 {
		return Permission{}, errors.New("rbac: permission role required")
	}
	if p.Action == "" || p.Resource == "" {
		return Permission{}, errors.New("rbac: permission action and resource required")
	}
	if p.ScopeKind == "" {
		p.ScopeKind = ScopeGlobal
	}
	return s.repo.CreatePermission(ctx, p)
}

// DeletePermission removes a permission by ID.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.repo.DeletePermission(ctx, id)
}

// AssignRole assigns a role to the given user.
func (s *Service) AssignRole(ctx context.Context, userID string, roleID int64) error {
	if userID == "" {
		return errors.New("rbac: user id required")
	}
	return s.repo.AssignRole(ctx, userID, roleID)
}

// RemoveRole removes a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID string, roleID int64) error {
	return s.repo.RemoveRole(ctx, userID, roleID)
}

// RolesForUser returns the names of the roles directly assigned to a user.
func (s *Service) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	return s.repo.RolesForUser(ctx, userID)
}

// AdminRoleNames returns role names at or above the given priority threshold.
func (s *Service) AdminRoleNames(ctx context.Context, minPriority int) ([]string, error) {
	return s.repo.AdminRoleNames(ctx, minPriority)
}

// HasPermission loads the permission snapshot for the user's roles and runs
// the pure evaluator over it. Unknown roles contribute no permissions and
// therefore deny, never error.
func (s *Service) HasPermission(ctx context.Context, userRoles []string, action, resource, scopeKind, scopeValue string) (bool, error) {
	perms, err := s.repo.PermissionsForRoles(ctx, userRoles)
	if err != nil {
		return false, err
	}
	return HasPermission(perms, action, resource, scopeKind, scopeValue), nil
}
