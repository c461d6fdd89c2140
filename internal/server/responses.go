package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/lumenforge/lumenforge/internal/problem"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// maxBodyBytes bounds request bodies; every request document is tiny.
const maxBodyBytes = 64 << 10

// UserResponse is the wire form of a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	SubjectID string    `json:"subjectId"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// GroupResponse is the wire form of a group.
type GroupResponse struct {
	GUID        string    `json:"guid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GroupDetailResponse adds role names and members to a group.
type GroupDetailResponse struct {
	GroupResponse
	Roles   []string         `json:"roles"`
	Members []MemberResponse `json:"members"`
}

// MemberResponse is one member entry of a group detail.
type MemberResponse struct {
	SubjectID  string    `json:"subjectId"`
	JoinedAt   time.Time `json:"joinedAt"`
	AssignedBy *string   `json:"assignedBy"`
}

// MembershipResponse is returned when a user is added to a group.
type MembershipResponse struct {
	GroupGUID  string    `json:"groupGuid"`
	SubjectID  string    `json:"subjectId"`
	JoinedAt   time.Time `json:"joinedAt"`
	AssignedBy *string   `json:"assignedBy"`
}

// MeResponse describes the calling principal.
type MeResponse struct {
	SubjectID  string   `json:"subjectId"`
	TokenID    string   `json:"tokenId"`
	RealmRoles []string `json:"realmRoles"`
	Roles      []string `json:"roles"`
	RoleSource string   `json:"roleSource"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{ID: user.ID, SubjectID: user.SubjectID, JoinedAt: user.JoinedAt}
}

func toGroupResponse(group *models.Group) GroupResponse {
	return GroupResponse{
		GUID:        group.GUID,
		Name:        group.Name,
		Description: group.Description,
		CreatedAt:   group.CreatedAt,
		UpdatedAt:   group.UpdatedAt,
	}
}

func toGroupDetailResponse(details *iam.GroupDetails) GroupDetailResponse {
	resp := GroupDetailResponse{
		GroupResponse: toGroupResponse(&details.Group),
		Roles:         roleNames(details.Roles),
		Members:       make([]MemberResponse, 0, len(details.Members)),
	}
	for _, member := range details.Members {
		resp.Members = append(resp.Members, MemberResponse{
			SubjectID:  member.SubjectID,
			JoinedAt:   member.JoinedAt,
			AssignedBy: member.AssignedBy,
		})
	}
	return resp
}

func roleNames(roles []auth.Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	return names
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeBody reads a single JSON document into dst, rejecting unknown fields.
// On failure it writes a 400 problem and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		detail := fmt.Sprintf("malformed request body: %v", err)
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		problem.Validation(w, r, detail, map[string]string{"body": "must be a JSON object"})
		return false
	}
	if dec.More() {
		problem.Validation(w, r, "request body must contain a single JSON object", map[string]string{"body": "must be a JSON object"})
		return false
	}
	return true
}
