package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Request-shape limits.
const (
	minPasswordLength   = 8
	maxPasswordLength   = 100
	maxNameLength       = 100
	maxIdentifierLength = 320
)

// userNamePattern is the set of characters allowed in a username.
var userNamePattern = regexp.MustCompile(`^[a-zA-Z0-9._@+-]{1,256}$`)

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	UserName        string `json:"userName,omitempty"`
}

// Validate checks field presence and format and returns every problem.
func (r *SignupRequest) Validate() []string {
	var errs []string

	switch {
	case strings.TrimSpace(r.Email) == "":
		errs = append(errs, "The Email field is required.")
	case !isEmailAddress(r.Email):
		errs = append(errs, "The Email field is not a valid e-mail address.")
	}

	n := utf8.RuneCountInString(r.Password)
	switch {
	case n == 0:
		errs = append(errs, "The Password field is required.")
	case n < minPasswordLength || n > maxPasswordLength:
		errs = append(errs, "Password must be at least 8 characters long.")
	}

	switch {
	case r.ConfirmPassword == "":
		errs = append(errs, "The ConfirmPassword field is required.")
	case r.ConfirmPassword != r.Password:
		errs = append(errs, "Passwords do not match.")
	}

	errs = appendNameErrors(errs, "FirstName", r.FirstName)
	errs = appendNameErrors(errs, "LastName", r.LastName)

	if r.UserName != "" && !userNamePattern.MatchString(r.UserName) {
		errs = append(errs, "The UserName field may only contain letters, digits and . _ @ + -")
	}
	return errs
}

// EffectiveUserName is the username stored for the account: the supplied
// one, or the email when none was given.
func (r *SignupRequest) EffectiveUserName() string {
	if r.UserName != "" {
		return r.UserName
	}
	return strings.TrimSpace(r.Email)
}

func appendNameErrors(errs []string, field, value string) []string {
	switch {
	case strings.TrimSpace(value) == "":
		return append(errs, fmt.Sprintf("The %s field is required.", field))
	case utf8.RuneCountInString(value) > maxNameLength:
		return append(errs, fmt.Sprintf("%s cannot exceed %d characters.", field, maxNameLength))
	}
	return errs
}

// isEmailAddress accepts a bare addr-spec such as "a@b.com" and rejects
// display-name forms like "A <a@b.com>".
func isEmailAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == strings.TrimSpace(s)
}

// SigninRequest is the body of POST /api/auth/signin.
type SigninRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
	RememberMe      bool   `json:"rememberMe"`
}

// Validate checks field presence and length. There is no minimum password
// length here: a short wrong password still counts as a failed attempt.
func (r *SigninRequest) Validate() []string {
	var errs []string

	switch {
	case strings.TrimSpace(r.EmailOrUsername) == "":
		errs = append(errs, "Email or Username is required")
	case utf8.RuneCountInString(r.EmailOrUsername) > maxIdentifierLength:
		errs = append(errs, "Email or Username cannot exceed 320 characters")
	}

	switch {
	case r.Password == "":
		errs = append(errs, "Password is required")
	case utf8.RuneCountInString(r.Password) > maxPasswordLength:
		errs = append(errs, "Password cannot exceed 100 characters")
	}
	return errs
}
