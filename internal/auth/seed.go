package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// seedRole is one of the fixed roles created on first start.
type seedRole struct {
	ID          string
	Name        string
	Description string
}

var seedRoles = []seedRole{
	{RoleIDSuperAdmin, RoleSuperAdmin, "Full system access with all permissions"},
	{RoleIDAdmin, RoleAdmin, "Administrative access with most permissions"},
	{RoleIDManager, RoleManager, "Management level access"},
	{RoleIDSeniorStaff, RoleSeniorStaff, "Senior level staff access"},
	{RoleIDJuniorStaff, RoleJuniorStaff, "Junior level staff access"},
}

// normalizeRoleName turns "Super Admin" into "SUPER_ADMIN".
func normalizeRoleName(name string) string {
	return strings.ReplaceAll(normalize(name), " ", "_")
}

// SeedResult counts the rows a seeding run created.
type SeedResult struct {
	Roles       int
	Permissions int
	Grants      int
}

// SeedRoles creates the five fixed roles, the permission catalog and the
// default grants. Existing rows are left alone, so it is safe to run on
// every start and concurrently with itself.
func SeedRoles(ctx context.Context, db *sql.DB, logger *slog.Logger) (SeedResult, error) {
	var res SeedResult
	ts := formatTime(time.Now())

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	for _, r := range seedRoles {
		n, err := execCount(ctx, tx,
			`INSERT OR IGNORE INTO roles (id, name, normalized_name, description, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			r.ID, r.Name, normalizeRoleName(r.Name), r.Description, ts, ts)
		if err != nil {
			return res, fmt.Errorf("seeding role %s: %w", r.Name, err)
		}
		res.Roles += n
	}

	for _, e := range permissionCatalog {
		n, err := execCount(ctx, tx,
			`INSERT OR IGNORE INTO permissions (name, resource, action, description, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			e.Resource+":"+e.Action, e.Resource, e.Action, e.Description, ts)
		if err != nil {
			return res, fmt.Errorf("seeding permission %s:%s: %w", e.Resource, e.Action, err)
		}
		res.Permissions += n
	}

	for _, r := range seedRoles {
		for _, key := range grantsFor(r.ID) {
			resource, action, _ := strings.Cut(key, ":")
			n, err := execCount(ctx, tx,
				`INSERT OR IGNORE INTO role_permissions (role_id, permission_id, granted_at)
				 SELECT ?, id, ? FROM permissions WHERE resource = ? AND action = ?`,
				r.ID, ts, resource, action)
			if err != nil {
				return res, fmt.Errorf("granting %s to %s: %w", key, r.Name, err)
			}
			res.Grants += n
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing seed: %w", err)
	}

	if res.Roles+res.Permissions+res.Grants == 0 {
		logger.Debug("roles already seeded")
	} else {
		logger.Info("seeded roles and permissions",
			"roles", res.Roles,
			"permissions", res.Permissions,
			"grants", res.Grants,
		)
	}
	return res, nil
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return int(n), nil
}
