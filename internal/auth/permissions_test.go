package auth

import (
	"context"
	"slices"
	"testing"
)

func TestGrantsFor(t *testing.T) {
	known := make(map[string]bool, len(permissionCatalog))
	for _, e := range permissionCatalog {
		known[e.Resource+":"+e.Action] = true
	}

	for _, r := range seedRoles {
		for _, key := range grantsFor(r.ID) {
			if !known[key] {
				t.Errorf("role %s grants %q which is not in the catalog", r.Name, key)
			}
		}
	}

	if got := len(grantsFor(RoleIDSuperAdmin)); got != len(permissionCatalog) {
		t.Errorf("super admin grants = %d, want full catalog %d", got, len(permissionCatalog))
	}
	if grantsFor("unknown") != nil {
		t.Error("unknown role should have no grants")
	}
}

func TestGrantsFor_ReturnsCopy(t *testing.T) {
	keys := grantsFor(RoleIDJuniorStaff)
	keys[0] = "tampered"

	if grantsFor(RoleIDJuniorStaff)[0] == "tampered" {
		t.Error("grantsFor() must not expose the shared slice")
	}
}

func TestHasPermission(t *testing.T) {
	perms := []Permission{
		{Resource: "roles", Action: "read"},
		{Resource: "profile", Action: "read"},
	}

	tests := []struct {
		key  string
		want bool
	}{
		{PermRolesRead, true},
		{"profile:read", true},
		{PermAuditRead, false},
		{"roles", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := HasPermission(perms, tt.key); got != tt.want {
				t.Errorf("HasPermission(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestPermissionsForUser_ActiveRolesOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.mustSignup(t, "boss@example.com")

	roles := NewRoleRepository(env.db)
	perms, err := roles.PermissionsForUser(ctx, admin.ID)
	if err != nil {
		t.Fatalf("PermissionsForUser() error = %v", err)
	}
	if !HasPermission(perms, PermAuditRead) {
		t.Fatal("super admin should have audit:read")
	}

	if _, err := env.db.Exec("UPDATE roles SET is_active = 0 WHERE id = ?", RoleIDSuperAdmin); err != nil {
		t.Fatalf("deactivating role: %v", err)
	}
	perms, err = roles.PermissionsForUser(ctx, admin.ID)
	if err != nil {
		t.Fatalf("PermissionsForUser() error = %v", err)
	}
	if len(perms) != 0 {
		t.Errorf("permissions through inactive role = %v, want none", PermissionKeys(perms))
	}
}

func TestPermissionsForUser_Distinct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mustSignup(t, "first@example.com")
	u := env.mustSignup(t, "second@example.com")

	// Senior Staff overlaps Junior Staff on profile:*.
	if _, err := env.db.Exec("INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES (?, ?, ?)",
		u.ID, RoleIDSeniorStaff, formatTime(env.clock.Now())); err != nil {
		t.Fatalf("assigning extra role: %v", err)
	}

	perms, err := NewRoleRepository(env.db).PermissionsForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("PermissionsForUser() error = %v", err)
	}
	keys := PermissionKeys(perms)
	want := []string{"profile:read", "profile:update", "roles:read", "users:read"}
	if !slices.Equal(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}

	stored, err := env.users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !slices.Equal(stored.Roles, []string{RoleSeniorStaff, RoleJuniorStaff}) {
		t.Errorf("Roles = %v, want ordered by role id", stored.Roles)
	}
}
