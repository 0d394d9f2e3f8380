package auth

import (
	"errors"
	"strings"
	"time"
)

// Seeded role names. IDs are fixed so grants survive re-seeding.
const (
	RoleSuperAdmin  = "Super Admin"
	RoleAdmin       = "Admin"
	RoleManager     = "Manager"
	RoleSeniorStaff = "Senior Staff"
	RoleJuniorStaff = "Junior Staff"

	RoleIDSuperAdmin  = "1"
	RoleIDAdmin       = "2"
	RoleIDManager     = "3"
	RoleIDSeniorStaff = "4"
	RoleIDJuniorStaff = "5"
)

// RoleHolder is anything that carries role names, such as a User or
// the claims of a parsed access token.
type RoleHolder interface {
	RoleNames() []string
}

// CredentialHolder exposes the identifier and password hash used to
// verify a sign-in.
type CredentialHolder interface {
	Credentials() (id, passwordHash string)
}

// User is a person who can sign in.
type User struct {
	ID                 string     `json:"id"`
	UserName           string     `json:"userName"`
	NormalizedUserName string     `json:"-"`
	Email              string     `json:"email"`
	NormalizedEmail    string     `json:"-"`
	EmailConfirmed     bool       `json:"emailConfirmed"`
	PasswordHash       string     `json:"-"` // never serialised
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	IsActive           bool       `json:"isActive"`
	AccessFailedCount  int        `json:"-"`
	LockoutEnabled     bool       `json:"-"`
	LockoutEnd         *time.Time `json:"-"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginIP        string     `json:"-"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`

	// Roles is populated by repository reads; it is not a column.
	Roles []string `json:"roles"`
}

// RoleNames implements RoleHolder.
func (u *User) RoleNames() []string { return u.Roles }

// Credentials implements CredentialHolder.
func (u *User) Credentials() (id, passwordHash string) { return u.ID, u.PasswordHash }

// Role is a named set of permissions.
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalizedName"`
	Description    string    `json:"description"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserRole links a user to a role.
type UserRole struct {
	UserID     string    `json:"userId"`
	RoleID     string    `json:"roleId"`
	AssignedAt time.Time `json:"assignedAt"`
	AssignedBy string    `json:"assignedBy,omitempty"`
}

// Permission is a resource/action pair, e.g. users:read.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Key returns the "resource:action" form used in authorisation checks.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// RolePermission links a permission to a role.
type RolePermission struct {
	ID           int64     `json:"id"`
	RoleID       string    `json:"roleId"`
	PermissionID int64     `json:"permissionId"`
	GrantedAt    time.Time `json:"grantedAt"`
	GrantedBy    string    `json:"grantedBy,omitempty"`
}

// RefreshToken is a stored refresh token. Only the SHA-256 hash of the
// token handed to the client is persisted.
type RefreshToken struct {
	ID        int64      `json:"id"`
	TokenHash string     `json:"-"` // never serialised
	UserID    string     `json:"userId"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// IsActive reports whether the token is unrevoked and unexpired at now.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// normalize produces the value stored in normalized_* columns.
func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrLockedOut          = errors.New("account is locked out")
	ErrAccountLocked      = errors.New("account locked after repeated failures")
	ErrEmailUnconfirmed   = errors.New("email address is not confirmed")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
)

// ValidationError carries a summary message plus every individual problem
// found. Returned for request-shape, business-rule and password-policy
// failures.
type ValidationError struct {
	Message string
	Errors  []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Errors, "; ")
}

// FailedAttemptError reports a wrong password on an account that is not
// yet locked. Remaining is the number of further failures allowed before
// lockout. It unwraps to ErrInvalidCredentials.
type FailedAttemptError struct {
	Remaining int
}

func (e *FailedAttemptError) Error() string {
	return "invalid credentials"
}

func (e *FailedAttemptError) Unwrap() error {
	return ErrInvalidCredentials
}
