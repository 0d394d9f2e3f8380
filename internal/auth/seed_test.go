package auth

import (
	"context"
	"log/slog"
	"slices"
	"testing"
)

func TestSeedRoles_Idempotent(t *testing.T) {
	db := testDB(t) // already seeded once
	ctx := context.Background()

	res, err := SeedRoles(ctx, db, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("SeedRoles() error = %v", err)
	}
	if res != (SeedResult{}) {
		t.Errorf("second SeedRoles() = %+v, want nothing created", res)
	}

	var roles, perms int
	db.QueryRow("SELECT COUNT(*) FROM roles").Scan(&roles)       //nolint:errcheck // asserted below
	db.QueryRow("SELECT COUNT(*) FROM permissions").Scan(&perms) //nolint:errcheck // asserted below
	if roles != 5 {
		t.Errorf("roles = %d, want 5", roles)
	}
	if perms != len(permissionCatalog) {
		t.Errorf("permissions = %d, want %d", perms, len(permissionCatalog))
	}
}

func TestSeedRoles_FixedIDsAndNames(t *testing.T) {
	repo := NewRoleRepository(testDB(t))

	roles, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []struct{ id, name, normalized string }{
		{"1", "Super Admin", "SUPER_ADMIN"},
		{"2", "Admin", "ADMIN"},
		{"3", "Manager", "MANAGER"},
		{"4", "Senior Staff", "SENIOR_STAFF"},
		{"5", "Junior Staff", "JUNIOR_STAFF"},
	}
	if len(roles) != len(want) {
		t.Fatalf("List() returned %d roles, want %d", len(roles), len(want))
	}
	for i, w := range want {
		r := roles[i]
		if r.ID != w.id || r.Name != w.name || r.NormalizedName != w.normalized {
			t.Errorf("role[%d] = %s/%s/%s, want %s/%s/%s", i, r.ID, r.Name, r.NormalizedName, w.id, w.name, w.normalized)
		}
		if !r.IsActive || r.Description == "" {
			t.Errorf("role %s should be active with a description", r.Name)
		}
	}
}

func TestSeedRoles_DefaultGrants(t *testing.T) {
	repo := NewRoleRepository(testDB(t))
	ctx := context.Background()

	junior, err := repo.PermissionsForRole(ctx, RoleIDJuniorStaff)
	if err != nil {
		t.Fatalf("PermissionsForRole() error = %v", err)
	}
	if got := PermissionKeys(junior); !slices.Equal(got, []string{"profile:read", "profile:update"}) {
		t.Errorf("junior staff grants = %v", got)
	}

	super, err := repo.PermissionsForRole(ctx, RoleIDSuperAdmin)
	if err != nil {
		t.Fatalf("PermissionsForRole() error = %v", err)
	}
	if len(super) != len(permissionCatalog) {
		t.Errorf("super admin grants = %d, want %d", len(super), len(permissionCatalog))
	}

	none, err := repo.PermissionsForRole(ctx, "99")
	if err != nil {
		t.Fatalf("PermissionsForRole(unknown) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown role grants = %v, want none", none)
	}
}
