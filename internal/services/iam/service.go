package iam

import (
	"context"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/models"
)

// Service provides the identity and access management operations.
//
// This service centralizes:
//   - Authentication (request path - performance critical, cached)
//   - Role resolution (uncached, authoritative)
//   - User, group and membership administration
//
// Domain errors are returned as repository.ErrNotFound / repository.ErrConflict
// (wrapped), auth.ErrUnknownRole, or validation.Errors for malformed input.
type Service interface {
	// =========================================================================
	// Authentication (Request Path - Performance Critical)
	// =========================================================================

	// AuthenticateRequest tries all registered authenticators in order.
	//
	// Returns:
	//   - (principal, nil): Authentication successful
	//   - (nil, nil): No credentials found (unauthenticated request)
	//   - (nil, error): Authentication failed (invalid token or role resolution failure)
	AuthenticateRequest(ctx context.Context, req AuthRequest) (*Principal, error)

	// =========================================================================
	// Role Resolution (Uncached)
	// =========================================================================

	// GetRoles returns the distinct roles reachable through the subject's
	// group memberships. Unknown and role-less subjects both yield an empty slice.
	GetRoles(ctx context.Context, subjectID string) ([]auth.Role, error)

	// RoleCatalog lists every assignable role with its stable value.
	RoleCatalog() []auth.RoleInfo

	// =========================================================================
	// User Management (Admin Operations)
	// =========================================================================

	CreateUser(ctx context.Context, input UserInput) (*models.User, error)
	GetUser(ctx context.Context, subjectID string) (*models.User, error)
	DeleteUser(ctx context.Context, subjectID string) (*models.User, error)

	// =========================================================================
	// Group Management (Admin Operations)
	// =========================================================================

	CreateGroup(ctx context.Context, input GroupInput) (*models.Group, error)
	GetGroup(ctx context.Context, guid string) (*GroupDetails, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	DeleteGroup(ctx context.Context, guid string) error

	// =========================================================================
	// Membership and Group Roles (Admin Operations)
	// =========================================================================

	// AssignUserToGroup records actingSubjectID as the assigner.
	AssignUserToGroup(ctx context.Context, actingSubjectID string, input MembershipInput, groupGUID string) (*models.GroupMember, error)
	RemoveUserFromGroup(ctx context.Context, groupGUID, targetSubjectID string) error
	AssignRoleToGroup(ctx context.Context, groupGUID, roleName string) error
	RemoveRoleFromGroup(ctx context.Context, groupGUID, roleName string) error
}

// GroupDetails is a group with its attached roles and members.
type GroupDetails struct {
	Group   models.Group
	Roles   []auth.Role
	Members []models.GroupMember
}
