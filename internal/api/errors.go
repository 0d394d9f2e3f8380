package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/rbac-core/internal/auth"
)

// Response is the envelope every endpoint returns.
//
// StatusCode mirrors the HTTP status except for signup, which answers
// 200 with statusCode 201.
type Response struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Data       any      `json:"data"`
	Errors     []string `json:"errors"`
	TimeStamp  string   `json:"timeStamp"`
}

// Common envelope messages.
const (
	msgOK                 = "Request was successful"
	msgValidationFailed   = "Validation failed"
	msgInvalidBody        = "Invalid request body"
	msgUnexpected         = "An unexpected error occurred"
	msgUnauthorized       = "Authorization required"
	msgInvalidToken       = "Invalid or expired token"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgForbidden          = "Insufficient permissions"
	msgTooManyRequests    = "Too many requests. Please try again later."
	msgServiceUnavailable = "Service unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func envelope(success bool, statusCode int, message string, data any, errs []string) Response {
	return Response{
		Success:    success,
		StatusCode: statusCode,
		Message:    message,
		Data:       data,
		Errors:     errs,
		TimeStamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// writeOK writes a 200 success envelope.
func writeOK(w http.ResponseWriter, message string, data any) {
	if message == "" {
		message = msgOK
	}
	writeJSON(w, http.StatusOK, envelope(true, http.StatusOK, message, data, nil))
}

// writeCreated answers 200 with a 201 envelope.
func writeCreated(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope(true, http.StatusCreated, message, data, nil))
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, message string, errs []string) {
	writeJSON(w, status, envelope(false, status, message, nil, errs))
}

// writeBadRequest writes a 400 failure envelope.
func writeBadRequest(w http.ResponseWriter, message string, errs ...string) {
	writeError(w, http.StatusBadRequest, message, errs)
}

// writeUnauthorized writes a 401 failure envelope.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message, nil)
}

// writeInternalError writes the 500 envelope carrying err's text.
func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, msgUnexpected, []string{err.Error()})
}

// writeServiceError maps an error from the auth service to its envelope.
// Anything unrecognised is logged and answered with 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	var ferr *auth.FailedAttemptError

	switch {
	case errors.As(err, &verr):
		writeBadRequest(w, verr.Message, verr.Errors...)
	case errors.As(err, &ferr):
		writeBadRequest(w, fmt.Sprintf("Invalid credentials. %d attempts remaining before lockout", ferr.Remaining))
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeBadRequest(w, "Invalid credentials.")
	case errors.Is(err, auth.ErrAccountLocked):
		writeBadRequest(w, "Account locked out due to multiple failed attempts.")
	case errors.Is(err, auth.ErrLockedOut):
		writeBadRequest(w, "Account is locked out. Please try again later.")
	case errors.Is(err, auth.ErrUserInactive):
		writeBadRequest(w, "Account is deactivated. Please contact administrator.")
	case errors.Is(err, auth.ErrEmailUnconfirmed):
		writeBadRequest(w, "Please confirm your email address before signing in.")
	case errors.Is(err, auth.ErrUserNotFound):
		writeBadRequest(w, "User not found")
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, http.StatusConflict, "Email already exists", nil)
	case errors.Is(err, auth.ErrUsernameExists):
		writeError(w, http.StatusConflict, "Username already exists", nil)
	case errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked):
		writeUnauthorized(w, msgInvalidRefresh)
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, msgForbidden, nil)
	case errors.Is(err, auth.ErrRoleNotFound):
		writeError(w, http.StatusNotFound, "Role not found", nil)
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		writeInternalError(w, err)
	}
}
