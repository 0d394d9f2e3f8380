package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	CreateWithDefaultRole(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUserName(ctx context.Context, userName string) (*User, error)
	FindByUserNameOrEmail(ctx context.Context, userName, email string) (*User, error)
	RecordFailedAttempt(ctx context.Context, id string, policy LockoutPolicy, now time.Time) (FailedAttempt, error)
	RecordSignin(ctx context.Context, id, clientIP string, now time.Time) error
	Count(ctx context.Context) (int, error)
}

// FailedAttempt is the lockout state after a failure was recorded.
type FailedAttempt struct {
	// Count is the failure counter after the increment. It is zero when
	// this failure triggered a lock, since the lock resets the counter.
	Count int

	// LockedUntil is set when this failure locked the account.
	LockedUntil *time.Time
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, username, normalized_username, email, normalized_email, email_confirmed,
	password_hash, first_name, last_name, is_active, access_failed_count, lockout_enabled,
	lockout_end, last_login_at, last_login_ip, created_at, updated_at`

// CreateWithDefaultRole inserts the user and its first role in a single
// transaction. The role is chosen inside the INSERT: Super Admin when no
// user holds it yet, Junior Staff otherwise. With immediate transactions
// two concurrent signups cannot both observe "no Super Admin".
//
// On success user.ID, timestamps and user.Roles are populated.
func (r *SQLiteUserRepository) CreateWithDefaultRole(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.NormalizedUserName = normalize(user.UserName)
	user.NormalizedEmail = normalize(user.Email)

	now := time.Now().UTC().Truncate(time.Second)
	user.CreatedAt = now
	user.UpdatedAt = now
	ts := formatTime(now)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning signup transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.UserName, user.NormalizedUserName, user.Email, user.NormalizedEmail,
		boolToInt(user.EmailConfirmed), user.PasswordHash, user.FirstName, user.LastName,
		boolToInt(user.IsActive), user.AccessFailedCount, boolToInt(user.LockoutEnabled),
		nullTime(user.LockoutEnd), nullTime(user.LastLoginAt), nullString(user.LastLoginIP),
		ts, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uniqueViolationError(err)
		}
		return fmt.Errorf("creating user: %w", err)
	}

	var roleID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_at)
		 SELECT ?, CASE WHEN EXISTS (SELECT 1 FROM user_roles WHERE role_id = ?) THEN ? ELSE ? END, ?
		 RETURNING role_id`,
		user.ID, RoleIDSuperAdmin, RoleIDJuniorStaff, RoleIDSuperAdmin, ts,
	).Scan(&roleID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("assigning default role: %w", ErrRoleNotFound)
		}
		return fmt.Errorf("assigning default role: %w", err)
	}

	var roleName string
	if err := tx.QueryRowContext(ctx, "SELECT name FROM roles WHERE id = ?", roleID).Scan(&roleName); err != nil {
		return fmt.Errorf("reading assigned role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing signup: %w", err)
	}

	user.Roles = []string{roleName}
	return nil
}

// GetByID retrieves a user and its role names.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByEmail looks a user up by email, ignoring case.
func (r *SQLiteUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE normalized_email = ?", normalize(email))
}

// GetByUserName looks a user up by username, ignoring case.
func (r *SQLiteUserRepository) GetByUserName(ctx context.Context, userName string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE normalized_username = ?", normalize(userName))
}

// FindByUserNameOrEmail returns the first user whose username or email
// matches, preferring a username match.
func (r *SQLiteUserRepository) FindByUserNameOrEmail(ctx context.Context, userName, email string) (*User, error) {
	nu := normalize(userName)
	return r.getUser(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE normalized_username = ? OR normalized_email = ?
		 ORDER BY normalized_username = ? DESC
		 LIMIT 1`,
		nu, normalize(email), nu)
}

// RecordFailedAttempt atomically increments the failure counter. When the
// counter reaches policy.MaxFailedAttempts on a lockout-enabled account the
// account is locked until now+policy.Window and the counter reset.
func (r *SQLiteUserRepository) RecordFailedAttempt(ctx context.Context, id string, policy LockoutPolicy, now time.Time) (FailedAttempt, error) {
	var result FailedAttempt
	ts := formatTime(now)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("beginning failed-attempt transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	var lockoutEnabled int
	err = tx.QueryRowContext(ctx,
		`UPDATE users SET access_failed_count = access_failed_count + 1, updated_at = ?
		 WHERE id = ?
		 RETURNING access_failed_count, lockout_enabled`,
		ts, id,
	).Scan(&result.Count, &lockoutEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, ErrUserNotFound
		}
		return result, fmt.Errorf("recording failed attempt: %w", err)
	}

	if lockoutEnabled != 0 && result.Count >= policy.MaxFailedAttempts {
		until := policy.LockedUntil(now)
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET access_failed_count = 0, lockout_end = ?, updated_at = ? WHERE id = ?`,
			formatTime(until), ts, id,
		); err != nil {
			return result, fmt.Errorf("locking account: %w", err)
		}
		result.Count = 0
		result.LockedUntil = &until
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("committing failed attempt: %w", err)
	}
	return result, nil
}

// RecordSignin clears the lockout state and stores the login time and IP.
func (r *SQLiteUserRepository) RecordSignin(ctx context.Context, id, clientIP string, now time.Time) error {
	ts := formatTime(now)
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET access_failed_count = 0, lockout_end = NULL,
		     last_login_at = ?, last_login_ip = ?, updated_at = ?
		 WHERE id = ?`,
		ts, nullString(clientIP), ts, id,
	)
	if err != nil {
		return fmt.Errorf("recording signin: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// roleNames returns the names of the user's roles ordered by role id.
func (r *SQLiteUserRepository) roleNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.name FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = ?
		 ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user roles: %w", err)
	}
	return names, nil
}

func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	u, err := scanUserFrom(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if u.Roles, err = r.roleNames(ctx, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanUserFrom(s scanner) (*User, error) {
	var u User
	var emailConfirmed, isActive, lockoutEnabled int
	var lockoutEnd, lastLoginAt, lastLoginIP sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&u.ID, &u.UserName, &u.NormalizedUserName, &u.Email, &u.NormalizedEmail,
		&emailConfirmed, &u.PasswordHash, &u.FirstName, &u.LastName, &isActive,
		&u.AccessFailedCount, &lockoutEnabled, &lockoutEnd, &lastLoginAt, &lastLoginIP,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.EmailConfirmed = emailConfirmed != 0
	u.IsActive = isActive != 0
	u.LockoutEnabled = lockoutEnabled != 0
	u.LockoutEnd = parseNullTime(lockoutEnd)
	u.LastLoginAt = parseNullTime(lastLoginAt)
	u.LastLoginIP = lastLoginIP.String
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// uniqueViolationError maps a UNIQUE failure on users to the matching sentinel.
func uniqueViolationError(err error) error {
	if strings.Contains(err.Error(), "normalized_email") {
		return ErrEmailExists
	}
	return ErrUsernameExists
}

// Helper functions.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // format is controlled
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
