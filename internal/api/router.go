package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rbac-core/internal/auth"
)

// healthCheckTimeout bounds the database ping behind /api/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health check and metrics (no auth required)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/auth", func(r chi.Router) {
			r.With(s.rateLimit(scopeSignup)).Post("/signup", s.handleSignup)
			r.With(s.rateLimit(scopeSignin)).Post("/signin", s.handleSignin)
			r.Post("/refresh", s.handleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Post("/signout", s.handleSignout)
				r.Post("/signout-all", s.handleSignoutAll)
				r.Get("/me", s.handleMe)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/roles", func(r chi.Router) {
				r.Use(s.requirePermission(auth.PermRolesRead))
				r.Get("/", s.handleListRoles)
				r.Get("/{id}/permissions", s.handleListRolePermissions)
			})

			r.With(s.requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAuditLogs)
		})
	})

	return r
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.db.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, msgServiceUnavailable, []string{err.Error()})
		return
	}

	writeOK(w, "", map[string]any{
		"status":   "ok",
		"version":  s.version,
		"database": "ok",
	})
}
