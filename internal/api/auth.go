package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/rbac-core/internal/auth"
)

// userSummary is the account view returned by signin, refresh and me.
type userSummary struct {
	ID        string   `json:"id"`
	UserName  string   `json:"userName"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Roles     []string `json:"roles"`
}

func summarize(u *auth.User) userSummary {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userSummary{
		ID:        u.ID,
		UserName:  u.UserName,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     roles,
	}
}

// authResponse is the data of a successful signin or refresh.
type authResponse struct {
	AccessToken string      `json:"accessToken"`
	User        userSummary `json:"user"`
}

// meResponse is the data of GET /api/auth/me.
type meResponse struct {
	User           userSummary `json:"user"`
	Permissions    []string    `json:"permissions"`
	ActiveSessions int         `json:"activeSessions"`
	LastLoginAt    *time.Time  `json:"lastLoginAt,omitempty"`
}

// decodeBody decodes a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeBadRequest(w, msgInvalidBody, err.Error())
		return false
	}
	return true
}

// handleSignup creates an account. The echoed data never contains passwords.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.auth.Signup(r.Context(), req, clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeCreated(w, "Signup successful", summarize(user))
}

// handleSignin authenticates credentials, sets the refresh token cookie and
// returns an access token.
func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req auth.SigninRequest
	if !decodeBody(w, r, &req) {
		return
	}

	session, err := s.auth.Signin(r.Context(), req, clientIP(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, session)
	writeOK(w, "Sign in successful", authResponse{
		AccessToken: session.AccessToken,
		User:        summarize(session.User),
	})
}

// handleRefresh rotates the refresh token cookie and returns a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var raw string
	if c, err := r.Cookie(s.secCfg.Cookie.Name); err == nil {
		raw = c.Value
	}

	session, err := s.auth.Refresh(r.Context(), raw, clientIP(r))
	if err != nil {
		s.clearRefreshCookie(w)
		s.writeServiceError(w, r, err)
		return
	}

	s.setRefreshCookie(w, session)
	writeOK(w, "Token refreshed successfully", authResponse{
		AccessToken: session.AccessToken,
		User:        summarize(session.User),
	})
}

// handleSignout revokes the caller's refresh tokens.
func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.Signout(r.Context(), userIDFromContext(r.Context()), clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeOK(w, "Signed out successfully", nil)
}

// handleSignoutAll revokes the caller's refresh tokens on every device.
func (s *Server) handleSignoutAll(w http.ResponseWriter, r *http.Request) {
	if _, err := s.auth.SignoutAll(r.Context(), userIDFromContext(r.Context()), clientIP(r)); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearRefreshCookie(w)
	writeOK(w, "Signed out from all devices successfully", nil)
}

// handleMe returns the caller's profile and effective permissions.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.auth.Me(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeOK(w, "", meResponse{
		User:           summarize(profile.User),
		Permissions:    auth.PermissionKeys(profile.Permissions),
		ActiveSessions: profile.ActiveSessions,
		LastLoginAt:    profile.User.LastLoginAt,
	})
}

// setRefreshCookie stores the raw refresh token. The cookie expires with
// the stored row.
func (s *Server) setRefreshCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.secCfg.Cookie.Name,
		Value:    session.RefreshToken,
		Path:     "/",
		Expires:  session.RefreshRow.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secCfg.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.secCfg.Cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secCfg.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
