package iam

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/lumenforge/lumenforge/internal/repository"
	"github.com/lumenforge/lumenforge/internal/telemetry"
)

const tracerName = "lumenapi/services/iam"

// iamService implements the Service interface.
type iamService struct {
	// Repositories
	users       repository.UserRepository
	groups      repository.GroupRepository
	memberships repository.MembershipRepository

	// Authenticators, tried in order
	authenticators []Authenticator

	logger logrus.FieldLogger
}

// IAMServiceDependencies contains all dependencies for IAM service construction.
type IAMServiceDependencies struct {
	Users       repository.UserRepository
	Groups      repository.GroupRepository
	Memberships repository.MembershipRepository

	// Authenticators may be empty, in which case every request is anonymous.
	Authenticators []Authenticator

	Logger logrus.FieldLogger
}

// NewIAMService creates a new IAM service with all dependencies.
func NewIAMService(deps IAMServiceDependencies) Service {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &iamService{
		users:          deps.Users,
		groups:         deps.Groups,
		memberships:    deps.Memberships,
		authenticators: deps.Authenticators,
		logger:         logger,
	}
}

// =========================================================================
// Authentication (Request Path - Performance Critical)
// =========================================================================

// AuthenticateRequest tries all registered authenticators in order.
//
// Algorithm:
//   - If authenticator returns (nil, nil): no credentials, try next
//   - If authenticator returns (nil, error): authentication failed, stop and return error
//   - If authenticator returns (principal, nil): success, stop and return principal
//   - If all authenticators return (nil, nil): return (nil, nil) for unauthenticated request
func (s *iamService) AuthenticateRequest(ctx context.Context, req AuthRequest) (*Principal, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.AuthenticateRequest",
		attribute.Int("authenticator_count", len(s.authenticators)),
	)
	defer span.End()

	for i, authenticator := range s.authenticators {
		principal, err := authenticator.Authenticate(ctx, req)
		if err != nil {
			telemetry.AddEvent(span, "authentication.failed",
				attribute.Int("authenticator_index", i),
			)
			telemetry.RecordError(span, err)
			return nil, err
		}
		if principal != nil {
			span.SetAttributes(
				attribute.String(telemetry.AttrPrincipalSubject, principal.Subject),
				attribute.String(telemetry.AttrRoleSource, principal.RoleSource),
				attribute.Int(telemetry.AttrPrincipalRoles, principal.Roles.Len()),
			)
			telemetry.AddEvent(span, "authentication.succeeded",
				attribute.Int("authenticator_index", i),
			)
			return principal, nil
		}
	}

	telemetry.AddEvent(span, "authentication.no_credentials")
	return nil, nil
}

// =========================================================================
// Role Resolution (Uncached)
// =========================================================================

func (s *iamService) GetRoles(ctx context.Context, subjectID string) ([]auth.Role, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.GetRoles",
		attribute.String(telemetry.AttrPrincipalSubject, subjectID),
	)
	defer span.End()

	roles, err := s.memberships.RolesForSubject(ctx, subjectID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.AttrPrincipalRoles, len(roles)))
	return roles, nil
}

func (s *iamService) RoleCatalog() []auth.RoleInfo {
	return auth.RoleCatalog()
}

// =========================================================================
// User Management (Admin Operations)
// =========================================================================

func (s *iamService) CreateUser(ctx context.Context, input UserInput) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.CreateUser",
		attribute.String(telemetry.AttrTargetSubject, input.SubjectID),
	)
	defer span.End()

	if err := input.Validate(); err != nil {
		telemetry.AddEvent(span, "validation.failed")
		return nil, err
	}

	user := &models.User{SubjectID: input.SubjectID}
	if err := s.users.Create(ctx, user); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.WithField("subject", user.SubjectID).Info("user registered")
	return user, nil
}

func (s *iamService) GetUser(ctx context.Context, subjectID string) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.GetUser",
		attribute.String(telemetry.AttrTargetSubject, subjectID),
	)
	defer span.End()

	user, err := s.users.GetBySubject(ctx, subjectID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return user, nil
}

func (s *iamService) DeleteUser(ctx context.Context, subjectID string) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.DeleteUser",
		attribute.String(telemetry.AttrTargetSubject, subjectID),
	)
	defer span.End()

	user, err := s.users.DeleteBySubject(ctx, subjectID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.WithField("subject", subjectID).Info("user deleted")
	return user, nil
}

// =========================================================================
// Group Management (Admin Operations)
// =========================================================================

func (s *iamService) CreateGroup(ctx context.Context, input GroupInput) (*models.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.CreateGroup",
		attribute.String(telemetry.AttrGroupName, input.Name),
	)
	defer span.End()

	if err := input.Validate(); err != nil {
		telemetry.AddEvent(span, "validation.failed")
		return nil, err
	}

	group := &models.Group{Name: input.Name, Description: input.Description}
	if err := s.groups.Create(ctx, group); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String(telemetry.AttrGroupGUID, group.GUID))
	s.logger.WithFields(logrus.Fields{"group": group.Name, "guid": group.GUID}).Info("group created")
	return group, nil
}

func (s *iamService) GetGroup(ctx context.Context, guid string) (*GroupDetails, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.GetGroup",
		attribute.String(telemetry.AttrGroupGUID, guid),
	)
	defer span.End()

	group, err := s.groups.GetByGUID(ctx, guid)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	roles, err := s.groups.ListRoles(ctx, guid)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	members, err := s.groups.ListMembers(ctx, guid)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &GroupDetails{Group: *group, Roles: roles, Members: members}, nil
}

func (s *iamService) ListGroups(ctx context.Context) ([]models.Group, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.ListGroups")
	defer span.End()

	groups, err := s.groups.List(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return groups, nil
}

func (s *iamService) DeleteGroup(ctx context.Context, guid string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.DeleteGroup",
		attribute.String(telemetry.AttrGroupGUID, guid),
	)
	defer span.End()

	if err := s.groups.DeleteByGUID(ctx, guid); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.WithField("guid", guid).Info("group deleted")
	return nil
}

// =========================================================================
// Membership and Group Roles (Admin Operations)
// =========================================================================

func (s *iamService) AssignUserToGroup(ctx context.Context, actingSubjectID string, input MembershipInput, groupGUID string) (*models.GroupMember, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.AssignUserToGroup",
		attribute.String(telemetry.AttrGroupGUID, groupGUID),
		attribute.String(telemetry.AttrTargetSubject, input.SubjectID),
	)
	defer span.End()

	if err := input.Validate(); err != nil {
		telemetry.AddEvent(span, "validation.failed")
		return nil, err
	}

	member, err := s.memberships.AssignUserToGroup(ctx, actingSubjectID, input.SubjectID, groupGUID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"guid":        groupGUID,
		"subject":     input.SubjectID,
		"assigned_by": actingSubjectID,
	}).Info("user added to group")
	return member, nil
}

func (s *iamService) RemoveUserFromGroup(ctx context.Context, groupGUID, targetSubjectID string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.RemoveUserFromGroup",
		attribute.String(telemetry.AttrGroupGUID, groupGUID),
		attribute.String(telemetry.AttrTargetSubject, targetSubjectID),
	)
	defer span.End()

	if err := s.memberships.RemoveUserFromGroup(ctx, groupGUID, targetSubjectID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.WithFields(logrus.Fields{"guid": groupGUID, "subject": targetSubjectID}).Info("user removed from group")
	return nil
}

func (s *iamService) AssignRoleToGroup(ctx context.Context, groupGUID, roleName string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.AssignRoleToGroup",
		attribute.String(telemetry.AttrGroupGUID, groupGUID),
		attribute.String(telemetry.AttrRoleName, roleName),
	)
	defer span.End()

	role, err := auth.ParseRole(roleName)
	if err != nil {
		telemetry.AddEvent(span, "validation.failed")
		return fmt.Errorf("assign role: %w", err)
	}

	if err := s.memberships.AssignRoleToGroup(ctx, groupGUID, role); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.WithFields(logrus.Fields{"guid": groupGUID, "role": role.String()}).Info("role assigned to group")
	return nil
}

func (s *iamService) RemoveRoleFromGroup(ctx context.Context, groupGUID, roleName string) error {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "iam.RemoveRoleFromGroup",
		attribute.String(telemetry.AttrGroupGUID, groupGUID),
		attribute.String(telemetry.AttrRoleName, roleName),
	)
	defer span.End()

	role, err := auth.ParseRole(roleName)
	if err != nil {
		telemetry.AddEvent(span, "validation.failed")
		return fmt.Errorf("remove role: %w", err)
	}

	if err := s.memberships.RemoveRoleFromGroup(ctx, groupGUID, role); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.WithFields(logrus.Fields{"guid": groupGUID, "role": role.String()}).Info("role removed from group")
	return nil
}
