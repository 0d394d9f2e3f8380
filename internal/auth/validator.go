package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Business-rule messages returned by SignupValidator.
const (
	MsgUsernameExists       = "Username already exists"
	MsgEmailExists          = "Email already exists"
	MsgCommonPassword       = "Password is too common. Please choose a stronger password."
	MsgRestrictedDomain     = "Email domain is not allowed for registration."
	MsgPasswordPersonalInfo = "Password cannot contain personal information."
)

// minPersonalInfoLen is the shortest name fragment treated as personal
// information. Single letters ("A") would reject most passwords.
const minPersonalInfoLen = 2

var commonPasswords = map[string]struct{}{
	"password":    {},
	"123456":      {},
	"password123": {},
	"admin":       {},
	"qwerty":      {},
	"welcome":     {},
	"letmein":     {},
	"monkey":      {},
	"1234567890":  {},
	"password1":   {},
	"123456789":   {},
}

var restrictedDomains = map[string]struct{}{
	"tempmail.com":      {},
	"10minutemail.com":  {},
	"guerrillamail.com": {},
}

// SignupCandidate is the data the business rules look at.
type SignupCandidate struct {
	UserName  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ValidationResult holds every business-rule failure. Empty means valid.
type ValidationResult struct {
	Errors []string
}

// Valid reports whether no rule failed.
func (r ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) add(msg string) { r.Errors = append(r.Errors, msg) }

// userLookup is the read access the validator needs.
type userLookup interface {
	FindByUserNameOrEmail(ctx context.Context, userName, email string) (*User, error)
}

// SignupValidator applies the signup business rules. It only reads.
type SignupValidator struct {
	users userLookup
}

// NewSignupValidator creates a validator backed by the user store.
func NewSignupValidator(users userLookup) *SignupValidator {
	return &SignupValidator{users: users}
}

// Validate runs every rule and collects all failures in order: uniqueness,
// common password, restricted email domain, personal information.
func (v *SignupValidator) Validate(ctx context.Context, c SignupCandidate) (ValidationResult, error) {
	var result ValidationResult

	existing, err := v.users.FindByUserNameOrEmail(ctx, c.UserName, c.Email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return result, fmt.Errorf("checking uniqueness: %w", err)
	}
	if existing != nil {
		if existing.NormalizedUserName == normalize(c.UserName) {
			result.add(MsgUsernameExists)
		} else {
			result.add(MsgEmailExists)
		}
	}

	result.Errors = append(result.Errors, ContentErrors(c)...)
	return result, nil
}

// ContentErrors runs the rules that need no store access: common password,
// restricted email domain and personal information.
func ContentErrors(c SignupCandidate) []string {
	var errs []string
	if IsCommonPassword(c.Password) {
		errs = append(errs, MsgCommonPassword)
	}
	if HasRestrictedDomain(c.Email) {
		errs = append(errs, MsgRestrictedDomain)
	}
	if ContainsPersonalInfo(c.Password, c.FirstName, c.LastName, c.UserName) {
		errs = append(errs, MsgPasswordPersonalInfo)
	}
	return errs
}

// IsCommonPassword matches the deny-list case-insensitively.
func IsCommonPassword(password string) bool {
	_, ok := commonPasswords[strings.ToLower(password)]
	return ok
}

// HasRestrictedDomain checks the text after the last '@'.
func HasRestrictedDomain(email string) bool {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return false
	}
	_, ok := restrictedDomains[strings.ToLower(email[i+1:])]
	return ok
}

// ContainsPersonalInfo reports whether password contains any of the given
// fragments, ignoring case. Single-character fragments are skipped.
func ContainsPersonalInfo(password string, fragments ...string) bool {
	lower := strings.ToLower(password)
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if len([]rune(f)) < minPersonalInfoLen {
			continue
		}
		if strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
