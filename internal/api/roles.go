package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rbac-core/internal/auth"
)

// handleListRoles returns every role.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.auth.Roles(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, "", roles)
}

// handleListRolePermissions returns the permissions granted to one role.
func (s *Server) handleListRolePermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	roles, err := s.auth.Roles(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !slices.ContainsFunc(roles, func(role auth.Role) bool { return role.ID == id }) {
		s.writeServiceError(w, r, auth.ErrRoleNotFound)
		return
	}

	perms, err := s.auth.RolePermissions(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, "", perms)
}
