// Package logging provides structured logging for RBAC Core.
//
// It wraps log/slog with JSON or text output, level filtering and
// default fields (service, version) on every entry.
//
// Configuration in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Passwords, password hashes, access tokens and refresh tokens are never
// logged. Sign-in failures log the identifier and client IP only.
package logging
