package server

import (
	"context"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

// iamAdminService defines the exact IAM methods used by server handlers.
// Authentication is not listed: it runs in middleware before any handler.
type iamAdminService interface {
	// Role lookups
	GetRoles(ctx context.Context, subjectID string) ([]auth.Role, error)
	RoleCatalog() []auth.RoleInfo

	// User management
	CreateUser(ctx context.Context, input iam.UserInput) (*models.User, error)
	GetUser(ctx context.Context, subjectID string) (*models.User, error)
	DeleteUser(ctx context.Context, subjectID string) (*models.User, error)

	// Group management
	CreateGroup(ctx context.Context, input iam.GroupInput) (*models.Group, error)
	GetGroup(ctx context.Context, guid string) (*iam.GroupDetails, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	DeleteGroup(ctx context.Context, guid string) error

	// Membership and group roles
	AssignUserToGroup(ctx context.Context, actingSubjectID string, input iam.MembershipInput, groupGUID string) (*models.GroupMember, error)
	RemoveUserFromGroup(ctx context.Context, groupGUID, targetSubjectID string) error
	AssignRoleToGroup(ctx context.Context, groupGUID, roleName string) error
	RemoveRoleFromGroup(ctx context.Context, groupGUID, roleName string) error
}

// Compile-time check that iam.Service satisfies the handler contract.
var _ iamAdminService = (iam.Service)(nil)
