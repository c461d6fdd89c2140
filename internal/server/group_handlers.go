package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/lumenforge/lumenforge/internal/db/bunx"
	"github.com/lumenforge/lumenforge/internal/problem"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// groupGUIDParam extracts {guid} and rejects malformed values with a 400.
// Well-formed but unknown GUIDs are left for the service to report as 404.
func groupGUIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	guid := chi.URLParam(r, "guid")
	if !bunx.IsUUID(guid) {
		problem.Validation(w, r, "malformed group guid", map[string]string{"guid": "must be a valid UUID"})
		return "", false
	}
	return strings.ToLower(guid), true
}

// HandleCreateGroup handles PUT /api/v1/auth/groups
func HandleCreateGroup(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input iam.GroupInput
		if !decodeBody(w, r, &input) {
			return
		}

		group, err := iamService.CreateGroup(r.Context(), input)
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toGroupResponse(group))
	}
}

// HandleListGroups handles GET /api/v1/auth/groups
func HandleListGroups(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := iamService.ListGroups(r.Context())
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}

		resp := make([]GroupResponse, 0, len(groups))
		for i := range groups {
			resp = append(resp, toGroupResponse(&groups[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleGetGroup handles GET /api/v1/auth/groups/{guid}.
// The response carries role names and member subjects.
func HandleGetGroup(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guid, ok := groupGUIDParam(w, r)
		if !ok {
			return
		}

		details, err := iamService.GetGroup(r.Context(), guid)
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupDetailResponse(details))
	}
}

// HandleDeleteGroup handles DELETE /api/v1/auth/groups/{guid}
func HandleDeleteGroup(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guid, ok := groupGUIDParam(w, r)
		if !ok {
			return
		}

		if err := iamService.DeleteGroup(r.Context(), guid); err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleAssignUserToGroup handles PUT /api/v1/auth/groups/{guid}/users.
// The caller's subject is recorded as the assigner.
func HandleAssignUserToGroup(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guid, ok := groupGUIDParam(w, r)
		if !ok {
			return
		}

		var input iam.MembershipInput
		if !decodeBody(w, r, &input) {
			return
		}

		acting := ""
		if principal, ok := iam.PrincipalFromContext(r.Context()); ok {
			acting = principal.Subject
		}

		member, err := iamService.AssignUserToGroup(r.Context(), acting, input, guid)
		if err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MembershipResponse{
			GroupGUID:  guid,
			SubjectID:  member.SubjectID,
			JoinedAt:   member.JoinedAt,
			AssignedBy: member.AssignedBy,
		})
	}
}

// HandleRemoveUserFromGroup handles DELETE /api/v1/auth/groups/{guid}/users/{subjectId}.
// Removing a membership that does not exist is a 404.
func HandleRemoveUserFromGroup(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guid, ok := groupGUIDParam(w, r)
		if !ok {
			return
		}

		if err := iamService.RemoveUserFromGroup(r.Context(), guid, chi.URLParam(r, "subjectId")); err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleAssignRoleToGroup handles PUT /api/v1/auth/groups/{guid}/roles/{roleName}
func HandleAssignRoleToGroup(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guid, ok := groupGUIDParam(w, r)
		if !ok {
			return
		}

		if err := iamService.AssignRoleToGroup(r.Context(), guid, chi.URLParam(r, "roleName")); err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleRemoveRoleFromGroup handles DELETE /api/v1/auth/groups/{guid}/roles/{roleName}
func HandleRemoveRoleFromGroup(iamService iamAdminService, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guid, ok := groupGUIDParam(w, r)
		if !ok {
			return
		}

		if err := iamService.RemoveRoleFromGroup(r.Context(), guid, chi.URLParam(r, "roleName")); err != nil {
			problem.Error(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
