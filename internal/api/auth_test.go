package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/rbac-core/internal/auth"
)

func signupBody(email string) map[string]string {
	return map[string]string{
		"email":           email,
		"password":        testPassword,
		"confirmPassword": testPassword,
		"firstName":       "Alice",
		"lastName":        "Bell",
	}
}

func signinBody(identifier, password string) map[string]any {
	return map[string]any{"emailOrUsername": identifier, "password": password, "rememberMe": false}
}

func (e *testEnv) mustSignup(t *testing.T, email string) {
	t.Helper()
	if w := e.do(t, http.MethodPost, "/api/auth/signup", signupBody(email)); w.Code != http.StatusOK {
		t.Fatalf("signup %s: status %d body %s", email, w.Code, w.Body.String())
	}
}

// mustSignin signs in and returns the access token and refresh cookie.
func (e *testEnv) mustSignin(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/auth/signin", signinBody(email, testPassword))
	if w.Code != http.StatusOK {
		t.Fatalf("signin %s: status %d body %s", email, w.Code, w.Body.String())
	}
	_, data := envelopeOf(t, w)
	var body authResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal signin data: %v", err)
	}
	return body.AccessToken, refreshCookie(t, w)
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", testCookieName)
	return nil
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func TestSignup_FirstUserIsSuperAdmin(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", signupBody("a@b.com"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp, data := envelopeOf(t, w)
	if !resp.Success || resp.StatusCode != http.StatusCreated || resp.Message != "Signup successful" {
		t.Errorf("envelope = %+v", resp)
	}
	if strings.Contains(string(data), testPassword) {
		t.Error("signup response echoes the password")
	}

	var user userSummary
	if err := json.Unmarshal(data, &user); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if user.ID == "" || user.Email != "a@b.com" || user.UserName != "a@b.com" {
		t.Errorf("user = %+v", user)
	}
	if !slices.Equal(user.Roles, []string{auth.RoleSuperAdmin}) {
		t.Errorf("roles = %v, want [Super Admin]", user.Roles)
	}

	w = env.do(t, http.MethodPost, "/api/auth/signup", signupBody("c@d.com"))
	_, data = envelopeOf(t, w)
	if err := json.Unmarshal(data, &user); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !slices.Equal(user.Roles, []string{auth.RoleJuniorStaff}) {
		t.Errorf("second user roles = %v, want [Junior Staff]", user.Roles)
	}
}

func TestSignup_RestrictedDomain(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", signupBody("x@tempmail.com"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp, _ := envelopeOf(t, w)
	if resp.Message != msgValidationFailed || !slices.Contains(resp.Errors, "Email domain is not allowed for registration.") {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestSignup_ShapeErrors(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "not-an-email"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp, _ := envelopeOf(t, w)
	if resp.Success || resp.StatusCode != http.StatusBadRequest || len(resp.Errors) < 4 {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestSignup_InvalidJSON(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp, _ := envelopeOf(t, w); resp.Message != msgInvalidBody {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")

	w := env.do(t, http.MethodPost, "/api/auth/signup", signupBody("A@B.com"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp, _ := envelopeOf(t, w); len(resp.Errors) == 0 {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestSignin_Success(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")

	w := env.do(t, http.MethodPost, "/api/auth/signin", signinBody("a@b.com", testPassword))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	resp, data := envelopeOf(t, w)
	if resp.Message != "Sign in successful" {
		t.Errorf("message = %q", resp.Message)
	}
	var body authResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	claims, err := env.srv.auth.Issuer().Parse(body.AccessToken)
	if err != nil {
		t.Fatalf("access token does not parse: %v", err)
	}
	if claims.Subject != body.User.ID || !slices.Equal(body.User.Roles, []string{auth.RoleSuperAdmin}) {
		t.Errorf("claims sub %q, user %+v", claims.Subject, body.User)
	}

	c := refreshCookie(t, w)
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.Path != "/" {
		t.Errorf("cookie flags = %+v", c)
	}
	if c.Value == "" {
		t.Error("cookie has no value")
	}
	row, err := auth.NewTokenRepository(env.db.DB).GetByToken(context.Background(), c.Value)
	if err != nil {
		t.Fatalf("refresh cookie has no stored token: %v", err)
	}
	if !c.Expires.Equal(row.ExpiresAt) {
		t.Errorf("cookie expires %v, stored token expires %v", c.Expires, row.ExpiresAt)
	}
	if d := time.Until(row.ExpiresAt) - 7*24*time.Hour; d < -time.Minute || d > time.Minute {
		t.Errorf("stored token expires %v, want about 7 days out", row.ExpiresAt)
	}
}

func TestSignin_Failures(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"unknown user", signinBody("nobody@b.com", testPassword), "Invalid credentials."},
		{"wrong password", signinBody("a@b.com", "wrong"), "Invalid credentials. 4 attempts remaining before lockout"},
		{"missing fields", map[string]string{}, msgValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/auth/signin", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			resp, _ := envelopeOf(t, w)
			if resp.Message != tt.message {
				t.Errorf("message = %q, want %q", resp.Message, tt.message)
			}
			if strings.Contains(resp.Message, "nobody@b.com") {
				t.Error("identifier echoed in response")
			}
		})
	}
}

func TestSignin_Lockout(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")

	for i := 1; i <= 5; i++ {
		w := env.do(t, http.MethodPost, "/api/auth/signin", signinBody("a@b.com", "wrong"))
		resp, _ := envelopeOf(t, w)

		want := fmt.Sprintf("Invalid credentials. %d attempts remaining before lockout", 5-i)
		if i == 5 {
			want = "Account locked out due to multiple failed attempts."
		}
		if w.Code != http.StatusBadRequest || resp.Message != want {
			t.Fatalf("attempt %d: %d %q, want 400 %q", i, w.Code, resp.Message, want)
		}
	}

	w := env.do(t, http.MethodPost, "/api/auth/signin", signinBody("a@b.com", testPassword))
	resp, _ := envelopeOf(t, w)
	if w.Code != http.StatusBadRequest || resp.Message != "Account is locked out. Please try again later." {
		t.Errorf("after lockout: %d %q", w.Code, resp.Message)
	}
}

func TestSignout(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")
	access, cookie := env.mustSignin(t, "a@b.com")

	w := env.do(t, http.MethodPost, "/api/auth/signout", nil, bearer(access)...)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp, _ := envelopeOf(t, w); resp.Message != "Signed out successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if c := refreshCookie(t, w); c.MaxAge >= 0 {
		t.Errorf("cookie not cleared: %+v", c)
	}

	w = env.do(t, http.MethodPost, "/api/auth/refresh", nil, "Cookie", cookie.Name+"="+cookie.Value)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("refresh after signout = %d, want 401", w.Code)
	}
}

func TestSignoutAll(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")
	access, first := env.mustSignin(t, "a@b.com")
	_, second := env.mustSignin(t, "a@b.com")

	w := env.do(t, http.MethodPost, "/api/auth/signout-all", nil, bearer(access)...)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp, _ := envelopeOf(t, w); resp.Message != "Signed out from all devices successfully" {
		t.Errorf("message = %q", resp.Message)
	}

	for _, c := range []*http.Cookie{first, second} {
		w := env.do(t, http.MethodPost, "/api/auth/refresh", nil, "Cookie", c.Name+"="+c.Value)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("refresh after signout-all = %d, want 401", w.Code)
		}
	}
}

func TestAuthenticatedRoutes_RequireToken(t *testing.T) {
	env := testServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/auth/signout"},
		{http.MethodPost, "/api/auth/signout-all"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/roles"},
		{http.MethodGet, "/api/audit"},
	} {
		w := env.do(t, tc.method, tc.path, nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", tc.method, tc.path, w.Code)
		}
		resp, _ := envelopeOf(t, w)
		if resp.Message != msgUnauthorized {
			t.Errorf("%s %s message = %q", tc.method, tc.path, resp.Message)
		}

		w = env.do(t, tc.method, tc.path, nil, bearer("not.a.jwt")...)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with bad token = %d, want 401", tc.method, tc.path, w.Code)
		}
	}
}

func TestRefresh_Rotates(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")
	_, cookie := env.mustSignin(t, "a@b.com")

	w := env.do(t, http.MethodPost, "/api/auth/refresh", nil, "Cookie", cookie.Name+"="+cookie.Value)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	_, data := envelopeOf(t, w)
	var body authResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.AccessToken == "" || body.User.Email != "a@b.com" {
		t.Errorf("data = %+v", body)
	}
	next := refreshCookie(t, w)
	if next.Value == cookie.Value || next.Value == "" {
		t.Error("refresh token was not rotated")
	}

	// The old token is now revoked.
	w = env.do(t, http.MethodPost, "/api/auth/refresh", nil, "Cookie", cookie.Name+"="+cookie.Value)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("reused token = %d, want 401", w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/auth/refresh", nil, "Cookie", next.Name+"="+next.Value)
	if w.Code != http.StatusOK {
		t.Errorf("rotated token = %d, want 200", w.Code)
	}
}

func TestRefresh_NoCookie(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/api/auth/refresh", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if resp, _ := envelopeOf(t, w); resp.Message != msgInvalidRefresh {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestMe(t *testing.T) {
	env := testServer(t)
	env.mustSignup(t, "a@b.com")
	access, _ := env.mustSignin(t, "a@b.com")

	w := env.do(t, http.MethodGet, "/api/auth/me", nil, bearer(access)...)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	_, data := envelopeOf(t, w)
	var me meResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if me.User.Email != "a@b.com" || me.ActiveSessions != 1 || me.LastLoginAt == nil {
		t.Errorf("me = %+v", me)
	}
	for _, key := range []string{auth.PermRolesRead, auth.PermAuditRead, "users:delete"} {
		if !slices.Contains(me.Permissions, key) {
			t.Errorf("Super Admin permissions missing %q: %v", key, me.Permissions)
		}
	}
}

func TestWriteServiceError(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		err     error
		status  int
		message string
	}{
		{&auth.ValidationError{Message: "Signup failed", Errors: []string{"x"}}, http.StatusBadRequest, "Signup failed"},
		{&auth.FailedAttemptError{Remaining: 2}, http.StatusBadRequest, "Invalid credentials. 2 attempts remaining before lockout"},
		{auth.ErrInvalidCredentials, http.StatusBadRequest, "Invalid credentials."},
		{auth.ErrAccountLocked, http.StatusBadRequest, "Account locked out due to multiple failed attempts."},
		{auth.ErrLockedOut, http.StatusBadRequest, "Account is locked out. Please try again later."},
		{auth.ErrUserInactive, http.StatusBadRequest, "Account is deactivated. Please contact administrator."},
		{auth.ErrEmailUnconfirmed, http.StatusBadRequest, "Please confirm your email address before signing in."},
		{auth.ErrUserNotFound, http.StatusBadRequest, "User not found"},
		{fmt.Errorf("creating user: %w", auth.ErrEmailExists), http.StatusConflict, "Email already exists"},
		{auth.ErrUsernameExists, http.StatusConflict, "Username already exists"},
		{auth.ErrTokenRevoked, http.StatusUnauthorized, msgInvalidRefresh},
		{auth.ErrForbidden, http.StatusForbidden, msgForbidden},
		{auth.ErrRoleNotFound, http.StatusNotFound, "Role not found"},
		{errors.New("disk on fire"), http.StatusInternalServerError, msgUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			w := httptest.NewRecorder()
			env.srv.writeServiceError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			resp, _ := envelopeOf(t, w)
			if resp.Message != tt.message || resp.StatusCode != tt.status || resp.Success {
				t.Errorf("envelope = %+v", resp)
			}
		})
	}
}
