package server

import (
	"net/http"

	"github.com/lumenforge/lumenforge/internal/problem"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// HandleRoleCatalog handles GET /api/v1/auth/roles
func HandleRoleCatalog(iamService iamAdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, iamService.RoleCatalog())
	}
}

// HandleMe handles GET /api/v1/auth/me.
// It reports the principal resolved for this request, including where the
// roles came from (cache, privileged or database).
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := iam.PrincipalFromContext(r.Context())
		if !ok {
			problem.Unauthorized(w, r, "a bearer token is required")
			return
		}

		realmRoles := principal.RealmRoles
		if realmRoles == nil {
			realmRoles = []string{}
		}
		writeJSON(w, http.StatusOK, MeResponse{
			SubjectID:  principal.Subject,
			TokenID:    principal.TokenID,
			RealmRoles: realmRoles,
			Roles:      principal.Roles.Names(),
			RoleSource: principal.RoleSource,
		})
	}
}
