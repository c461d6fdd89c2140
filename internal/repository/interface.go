package repository

import (
	"context"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/models"
)

// UserRepository exposes persistence operations for registered IdP subjects.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetBySubject(ctx context.Context, subjectID string) (*models.User, error)
	ResolveUserIDBySubject(ctx context.Context, subjectID string) (int64, error)
	// DeleteBySubject removes the user and its memberships in one transaction.
	DeleteBySubject(ctx context.Context, subjectID string) (*models.User, error)
}

// GroupRepository exposes persistence operations for groups.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByGUID(ctx context.Context, guid string) (*models.Group, error)
	ResolveGroupIDByGUID(ctx context.Context, guid string) (int64, error)
	List(ctx context.Context) ([]models.Group, error)
	// DeleteByGUID removes the group with its role and member rows in one transaction.
	DeleteByGUID(ctx context.Context, guid string) error
	ListRoles(ctx context.Context, guid string) ([]auth.Role, error)
	ListMembers(ctx context.Context, guid string) ([]models.GroupMember, error)
}

// MembershipRepository manages group membership and group role attachments,
// and answers the effective role query used by authentication.
//
// Every mutation runs in its own transaction: existence and duplicate checks
// and the write commit together or not at all.
type MembershipRepository interface {
	AssignUserToGroup(ctx context.Context, actingSubjectID, targetSubjectID, groupGUID string) (*models.GroupMember, error)
	RemoveUserFromGroup(ctx context.Context, groupGUID, targetSubjectID string) error
	AssignRoleToGroup(ctx context.Context, groupGUID string, role auth.Role) error
	RemoveRoleFromGroup(ctx context.Context, groupGUID string, role auth.Role) error

	// RolesForSubject returns the distinct roles of every group the subject
	// belongs to, ordered by value. Unknown subjects yield an empty slice.
	RolesForSubject(ctx context.Context, subjectID string) ([]auth.Role, error)
}
