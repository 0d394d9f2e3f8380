package auth

// Permission keys ("resource:action") checked by the API.
const (
	PermRolesRead = "roles:read"
	PermAuditRead = "audit:read"
)

// catalogEntry describes one permission row created at startup.
type catalogEntry struct {
	Resource    string
	Action      string
	Description string
}

// permissionCatalog is every permission the system knows about.
var permissionCatalog = []catalogEntry{
	{"profile", "read", "View own profile"},
	{"profile", "update", "Edit own profile"},
	{"users", "read", "View user accounts"},
	{"users", "create", "Create user accounts"},
	{"users", "update", "Edit user accounts"},
	{"users", "delete", "Delete user accounts"},
	{"roles", "read", "View roles"},
	{"roles", "assign", "Assign roles to users"},
	{"roles", "update", "Edit roles"},
	{"permissions", "read", "View permissions"},
	{"permissions", "grant", "Grant permissions to roles"},
	{"sessions", "read", "View active sessions"},
	{"sessions", "revoke", "Revoke other users' sessions"},
	{"audit", "read", "View the audit log"},
}

// roleGrants maps each seeded role to its default permission keys.
// Super Admin is granted the whole catalog and is not listed.
var roleGrants = map[string][]string{
	RoleIDAdmin: {
		"profile:read", "profile:update",
		"users:read", "users:create", "users:update", "users:delete",
		"roles:read", "roles:assign",
		"permissions:read",
		"sessions:read", "sessions:revoke",
		"audit:read",
	},
	RoleIDManager: {
		"profile:read", "profile:update",
		"users:read", "users:update",
		"roles:read",
		"sessions:read",
		"audit:read",
	},
	RoleIDSeniorStaff: {
		"profile:read", "profile:update",
		"users:read",
		"roles:read",
	},
	RoleIDJuniorStaff: {
		"profile:read", "profile:update",
	},
}

// grantsFor returns the default permission keys for a seeded role.
func grantsFor(roleID string) []string {
	if roleID == RoleIDSuperAdmin {
		keys := make([]string, 0, len(permissionCatalog))
		for _, e := range permissionCatalog {
			keys = append(keys, e.Resource+":"+e.Action)
		}
		return keys
	}
	return append([]string(nil), roleGrants[roleID]...)
}

// HasPermission reports whether perms contains the given "resource:action" key.
func HasPermission(perms []Permission, key string) bool {
	for _, p := range perms {
		if p.Key() == key {
			return true
		}
	}
	return false
}

// PermissionKeys flattens perms to their "resource:action" keys.
func PermissionKeys(perms []Permission) []string {
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key())
	}
	return keys
}
