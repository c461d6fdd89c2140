package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/lumenforge/lumenforge/internal/problem"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// HandleCreateUser handles PUT /api/v1/auth/users.
// Registers an identity provider subject. 201 with the user, 409 if already registered.
func HandleCreateUser(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input iam.UserInput
		if !decodeBody(w, r, &input) {
			return
		}

		user, err := iamService.CreateUser(r.Context(), input)
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toUserResponse(user))
	}
}

// HandleGetUser handles GET /api/v1/auth/users/{subjectId}
func HandleGetUser(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := iamService.GetUser(r.Context(), chi.URLParam(r, "subjectId"))
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	}
}

// HandleDeleteUser handles DELETE /api/v1/auth/users/{subjectId}.
// The deleted user is echoed back; memberships go with it.
func HandleDeleteUser(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := iamService.DeleteUser(r.Context(), chi.URLParam(r, "subjectId"))
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	}
}

// HandleGetUserRoles handles GET /api/v1/auth/users/{subjectId}/roles.
// Always answers from the database. Unknown subjects get an empty array, not 404.
func HandleGetUserRoles(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roles, err := iamService.GetRoles(r.Context(), chi.URLParam(r, "subjectId"))
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, roleNames(roles))
	}
}
