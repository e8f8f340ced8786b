package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-cms/meridian/internal/platform/db"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Repository provides PostgreSQL backed persistence for roles, permissions
// and user role assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by priority descending.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, priority, description, created_at, updated_at
FROM roles ORDER BY priority DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Priority, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, priority, description, created_at, updated_at
FROM roles WHERE id=$1`, id).Scan(&role.ID, &role.Name, &role.Priority, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role. The insert is skipped when a role with the
// same name already exists; the existing row is returned instead.
func (r *Repository) CreateRole(ctx context.Context, name string, priority int, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `INSERT INTO roles (name, priority, description)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name, priority, description, created_at, updated_at`,
		strings.TrimSpace(name), priority, strings.TrimSpace(description)).
		Scan(&role.ID, &role.Name, &role.Priority, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role together with its permissions and assignments in
// one transaction, so a concurrent snapshot never sees orphaned grants.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE role_id=$1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE role_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreatePermission attaches a permission to a role, idempotent on the natural
// key (role, action, resource, scope kind, scope value, is_allowed).
func (r *Repository) CreatePermission(ctx context.Context, p Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (role_id, action, resource, scope_kind, scope_value, is_allowed)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (role_id, action, resource, scope_kind, scope_value) DO UPDATE SET is_allowed = EXCLUDED.is_allowed
RETURNING id, created_at`,
		p.RoleID, p.Action, p.Resource, p.ScopeKind, p.ScopeValue, p.IsAllowed).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

// DeletePermission removes a permission by ID.
func (r *Repository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PermissionsForRoles loads the permission snapshot for the given role names.
func (r *Repository) PermissionsForRoles(ctx context.Context, roleNames []string) ([]Permission, error) {
	if len(roleNames) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.role_id, r.name, p.action, p.resource, p.scope_kind, p.scope_value, p.is_allowed, p.created_at
FROM permissions p
JOIN roles r ON r.id = p.role_id
WHERE r.name = ANY($1)`, roleNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.RoleID, &p.RoleName, &p.Action, &p.Resource, &p.ScopeKind, &p.ScopeValue, &p.IsAllowed, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// AssignRole assigns a role to a user, idempotent on the pair.
func (r *Repository) AssignRole(ctx context.Context, userID string, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_role_assignments (user_id, role_id)
VALUES ($1, $2) ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	return err
}

// RemoveRole removes a role from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID string, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_role_assignments WHERE user_id=$1 AND role_id=$2`, userID, roleID)
	return err
}

// RolesForUser returns the names of the roles directly assigned to a user.
func (r *Repository) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.name FROM user_role_assignments a
JOIN roles r ON r.id = a.role_id
WHERE a.user_id = $1 ORDER BY r.priority DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AdminRoleNames returns role names at or above the given priority.
func (r *Repository) AdminRoleNames(ctx context.Context, minPriority int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM roles WHERE priority >= $1`, minPriority)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
