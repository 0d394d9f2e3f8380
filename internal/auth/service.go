package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// decoyHash is verified against when the signin identifier matches no
// account, so both outcomes cost one Argon2id derivation.
var decoyHash = sync.OnceValue(func() string {
	h, err := HashPassword("decoy-password-never-matches")
	if err != nil {
		return ""
	}
	return h
})

// Service orchestrates signup, signin, signout and token refresh.
type Service struct {
	users     UserRepository
	roles     RoleRepository
	tokens    TokenRepository
	validator *SignupValidator
	issuer    *TokenIssuer
	events    EventSink
	logger    *slog.Logger

	lockout               LockoutPolicy
	password              PasswordPolicy
	requireConfirmedEmail bool

	now func() time.Time
	// burnPassword runs on unknown identifiers.
	burnPassword func(password string)
}

// ServiceDeps holds the collaborators for NewService. Zero policies fall
// back to the defaults; a nil Events discards events.
type ServiceDeps struct {
	Users  UserRepository
	Roles  RoleRepository
	Tokens TokenRepository
	Issuer *TokenIssuer
	Events EventSink
	Logger *slog.Logger

	Lockout               LockoutPolicy
	Password              PasswordPolicy
	RequireConfirmedEmail bool
}

// NewService wires a Service.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		users:                 deps.Users,
		roles:                 deps.Roles,
		tokens:                deps.Tokens,
		validator:             NewSignupValidator(deps.Users),
		issuer:                deps.Issuer,
		events:                deps.Events,
		logger:                deps.Logger,
		lockout:               deps.Lockout,
		password:              deps.Password,
		requireConfirmedEmail: deps.RequireConfirmedEmail,
		now:                   time.Now,
		burnPassword: func(password string) {
			VerifyPassword(password, decoyHash()) //nolint:errcheck // result is discarded
		},
	}
	if s.lockout.MaxFailedAttempts <= 0 || s.lockout.Window <= 0 {
		s.lockout = DefaultLockoutPolicy()
	}
	if s.password == (PasswordPolicy{}) {
		s.password = DefaultPasswordPolicy()
	}
	if s.events == nil {
		s.events = discardSink{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Issuer returns the token issuer, used by the HTTP layer to verify bearer tokens.
func (s *Service) Issuer() *TokenIssuer { return s.issuer }

// Signup validates req, creates the account and assigns its first role.
//
// Errors: *ValidationError ("Validation failed" for shape and business
// rules, "Signup failed" for password policy), ErrEmailExists or
// ErrUsernameExists when a concurrent signup won the unique constraint.
func (s *Service) Signup(ctx context.Context, req SignupRequest, clientIP string) (*User, error) {
	userName := req.EffectiveUserName()
	candidate := SignupCandidate{
		UserName:  userName,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	// Content rules are reported alongside shape errors so a short
	// deny-listed password still names the deny-list.
	if errs := req.Validate(); len(errs) > 0 {
		errs = append(errs, ContentErrors(candidate)...)
		return nil, &ValidationError{Message: "Validation failed", Errors: errs}
	}

	result, err := s.validator.Validate(ctx, candidate)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, &ValidationError{Message: "Validation failed", Errors: result.Errors}
	}

	if problems := s.password.Check(req.Password); len(problems) > 0 {
		return nil, &ValidationError{Message: "Signup failed", Errors: problems}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		UserName:       userName,
		Email:          req.Email,
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		IsActive:       true,
		LockoutEnabled: true,
	}
	if err := s.users.CreateWithDefaultRole(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", "user_id", user.ID, "roles", user.Roles)
	s.events.Record(ctx, Event{
		Type:     EventSignup,
		UserID:   user.ID,
		ClientIP: clientIP,
		Details:  map[string]any{"roles": user.Roles},
		At:       s.now(),
	})
	return user, nil
}

// Session is the result of a successful signin or refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	RefreshRow   *RefreshToken
	User         *User
}

// Signin authenticates req and opens a new session.
//
// Failures, in the order they are checked: *ValidationError, ErrInvalidCredentials
// (unknown identifier), ErrLockedOut, ErrUserInactive, *FailedAttemptError or
// ErrAccountLocked (wrong password), ErrEmailUnconfirmed.
func (s *Service) Signin(ctx context.Context, req SigninRequest, clientIP string) (*Session, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Message: "Validation failed", Errors: errs}
	}

	user, err := s.resolveUser(ctx, req.EmailOrUsername)
	if errors.Is(err, ErrUserNotFound) {
		s.burnPassword(req.Password)
		s.logger.Warn("signin attempt with non-existent user",
			"identifier", req.EmailOrUsername, "client_ip", clientIP)
		s.recordFailure(ctx, "", req.EmailOrUsername, clientIP, "unknown_user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if IsLockedOut(user, now) {
		s.recordFailure(ctx, user.ID, req.EmailOrUsername, clientIP, "locked_out")
		return nil, ErrLockedOut
	}
	if !user.IsActive {
		s.recordFailure(ctx, user.ID, req.EmailOrUsername, clientIP, "inactive")
		return nil, ErrUserInactive
	}

	ok, err := VerifyCredentials(user, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, s.failedPassword(ctx, user, req.EmailOrUsername, clientIP, now)
	}

	if s.requireConfirmedEmail && !user.EmailConfirmed {
		s.recordFailure(ctx, user.ID, req.EmailOrUsername, clientIP, "email_unconfirmed")
		return nil, ErrEmailUnconfirmed
	}

	session, err := s.openSession(ctx, user, now)
	if err != nil {
		return nil, err
	}
	if err := s.users.RecordSignin(ctx, user.ID, clientIP, now); err != nil {
		return nil, err
	}
	user.AccessFailedCount = 0
	user.LockoutEnd = nil

	s.logger.Info("user signed in", "user_id", user.ID, "client_ip", clientIP)
	s.events.Record(ctx, Event{Type: EventSigninSucceeded, UserID: user.ID, ClientIP: clientIP, At: now})
	return session, nil
}

// resolveUser tries the identifier as an email first, then as a username.
func (s *Service) resolveUser(ctx context.Context, identifier string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, identifier)
	if errors.Is(err, ErrUserNotFound) {
		user, err = s.users.GetByUserName(ctx, identifier)
	}
	return user, err
}

func (s *Service) failedPassword(ctx context.Context, user *User, identifier, clientIP string, now time.Time) error {
	attempt, err := s.users.RecordFailedAttempt(ctx, user.ID, s.lockout, now)
	if err != nil {
		return err
	}

	if attempt.LockedUntil != nil {
		s.logger.Warn("account locked out",
			"user_id", user.ID, "client_ip", clientIP, "until", attempt.LockedUntil)
		s.events.Record(ctx, Event{
			Type:       EventLockout,
			UserID:     user.ID,
			Identifier: identifier,
			ClientIP:   clientIP,
			Details:    map[string]any{"locked_until": attempt.LockedUntil.Format(time.RFC3339)},
			At:         now,
		})
		return ErrAccountLocked
	}

	remaining := s.lockout.Remaining(attempt.Count)
	s.recordFailure(ctx, user.ID, identifier, clientIP, "bad_password")
	return &FailedAttemptError{Remaining: remaining}
}

func (s *Service) recordFailure(ctx context.Context, userID, identifier, clientIP, reason string) {
	s.events.Record(ctx, Event{
		Type:       EventSigninFailed,
		UserID:     userID,
		Identifier: identifier,
		ClientIP:   clientIP,
		Reason:     reason,
		At:         s.now(),
	})
}

// openSession mints an access token and persists a new refresh token.
func (s *Service) openSession(ctx context.Context, user *User, now time.Time) (*Session, error) {
	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	raw, err := s.issuer.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	row := &RefreshToken{
		TokenHash: HashToken(raw),
		UserID:    user.ID,
		ExpiresAt: s.issuer.RefreshExpiry(now),
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return nil, err
	}

	return &Session{AccessToken: access, RefreshToken: raw, RefreshRow: row, User: user}, nil
}

// Signout revokes every refresh token of userID that is not already revoked.
// An empty userID yields ErrUserNotFound. Returns the number revoked.
func (s *Service) Signout(ctx context.Context, userID, clientIP string) (int64, error) {
	if userID == "" {
		return 0, ErrUserNotFound
	}

	now := s.now()
	n, err := s.tokens.RevokeAllActiveForUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	s.logger.Info("user signed out", "user_id", userID, "revoked", n)
	s.events.Record(ctx, Event{
		Type:     EventSignout,
		UserID:   userID,
		ClientIP: clientIP,
		Details:  map[string]any{"revoked": n},
		At:       now,
	})
	return n, nil
}

// SignoutAll is the same operation as Signout; every active refresh token
// of the user is revoked.
func (s *Service) SignoutAll(ctx context.Context, userID, clientIP string) (int64, error) {
	return s.Signout(ctx, userID, clientIP)
}

// Refresh exchanges an active refresh token for a new access token and a
// new refresh token. The presented token is revoked in the same
// transaction that stores its replacement.
func (s *Service) Refresh(ctx context.Context, raw, clientIP string) (*Session, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	now := s.now()
	old, err := s.tokens.GetByToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if old.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}
	if !now.Before(old.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, old.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if IsLockedOut(user, now) {
		return nil, ErrLockedOut
	}

	access, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	next, err := s.issuer.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	row := &RefreshToken{
		TokenHash: HashToken(next),
		UserID:    user.ID,
		ExpiresAt: s.issuer.RefreshExpiry(now),
	}
	if err := s.tokens.Rotate(ctx, old.ID, row, now); err != nil {
		return nil, err
	}

	s.events.Record(ctx, Event{Type: EventRefresh, UserID: user.ID, ClientIP: clientIP, At: now})
	return &Session{AccessToken: access, RefreshToken: next, RefreshRow: row, User: user}, nil
}

// Profile is the caller's account with effective permissions.
type Profile struct {
	User           *User
	Permissions    []Permission
	ActiveSessions int
}

// Me loads the profile of an authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms, err := s.roles.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	active, err := s.tokens.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}
	return &Profile{User: user, Permissions: perms, ActiveSessions: len(active)}, nil
}

// Authorize reports ErrForbidden unless userID holds the permission key.
func (s *Service) Authorize(ctx context.Context, userID, key string) error {
	perms, err := s.roles.PermissionsForUser(ctx, userID)
	if err != nil {
		return err
	}
	if !HasPermission(perms, key) {
		return ErrForbidden
	}
	return nil
}

// Roles lists every role.
func (s *Service) Roles(ctx context.Context) ([]Role, error) {
	return s.roles.List(ctx)
}

// RolePermissions lists the permissions granted to one role.
func (s *Service) RolePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	return s.roles.PermissionsForRole(ctx, roleID)
}
