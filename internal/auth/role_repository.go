package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RoleRepository reads roles and the permissions granted through them.
type RoleRepository interface {
	List(ctx context.Context) ([]Role, error)
	PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error)
	PermissionsForUser(ctx context.Context, userID string) ([]Permission, error)
}

// SQLiteRoleRepository implements RoleRepository using SQLite.
type SQLiteRoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new SQLite-backed role repository.
func NewRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

const roleColumns = `id, name, normalized_name, description, is_active, created_at, updated_at`

// List returns all roles ordered by id.
func (r *SQLiteRoleRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+roleColumns+" FROM roles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// PermissionsForRole returns the permissions granted to one role.
func (r *SQLiteRoleRepository) PermissionsForRole(ctx context.Context, roleID string) ([]Permission, error) {
	return r.queryPermissions(ctx,
		`SELECT p.id, p.name, p.resource, p.action, p.description, p.created_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ?
		 ORDER BY p.resource, p.action`, roleID)
}

// PermissionsForUser returns the union of permissions across the user's
// active roles.
func (r *SQLiteRoleRepository) PermissionsForUser(ctx context.Context, userID string) ([]Permission, error) {
	return r.queryPermissions(ctx,
		`SELECT DISTINCT p.id, p.name, p.resource, p.action, p.description, p.created_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 JOIN roles ro ON ro.id = ur.role_id
		 WHERE ur.user_id = ? AND ro.is_active = 1
		 ORDER BY p.resource, p.action`, userID)
}

func (r *SQLiteRoleRepository) queryPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		var p Permission
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return perms, nil
}

func scanRole(s scanner) (*Role, error) {
	var role Role
	var isActive int
	var createdAt, updatedAt string

	err := s.Scan(&role.ID, &role.Name, &role.NormalizedName, &role.Description,
		&isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}

	role.IsActive = isActive != 0
	role.CreatedAt = parseTime(createdAt)
	role.UpdatedAt = parseTime(updatedAt)
	return &role, nil
}
