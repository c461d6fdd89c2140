package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/uptrace/bun"
)

// ========================================
// Membership Repository
// ========================================

// BunMembershipRepository implements MembershipRepository using Bun ORM
type BunMembershipRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewBunMembershipRepository creates a new Bun-based membership repository
func NewBunMembershipRepository(db *bun.DB) MembershipRepository {
	return &BunMembershipRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// AssignUserToGroup adds targetSubjectID to the group, recording actingSubjectID as assigner.
func (r *BunMembershipRepository) AssignUserToGroup(ctx context.Context, actingSubjectID, targetSubjectID, groupGUID string) (*models.GroupMember, error) {
	member := &models.GroupMember{SubjectID: targetSubjectID}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		groupID, err := resolveGroupID(ctx, tx, groupGUID)
		if err != nil {
			return err
		}
		userID, err := resolveUserID(ctx, tx, targetSubjectID)
		if err != nil {
			return err
		}

		exists, err := tx.NewSelect().
			Model((*models.GroupUser)(nil)).
			Where("group_id = ?", groupID).
			Where("user_id = ?", userID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check group membership: %w", err)
		}
		if exists {
			return conflict("group membership", fmt.Sprintf("%s in %s", targetSubjectID, groupGUID))
		}

		row := &models.GroupUser{
			GroupID:  groupID,
			UserID:   userID,
			JoinedAt: r.now(),
		}
		if actingSubjectID != "" {
			row.AssignedBy = &actingSubjectID
		}

		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			if isDuplicateKeyError(err) {
				return conflict("group membership", fmt.Sprintf("%s in %s", targetSubjectID, groupGUID))
			}
			return fmt.Errorf("create group membership: %w", err)
		}

		member.GroupID = row.GroupID
		member.UserID = row.UserID
		member.JoinedAt = row.JoinedAt
		member.AssignedBy = row.AssignedBy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveUserFromGroup deletes the membership. Removing an absent membership is NotFound.
func (r *BunMembershipRepository) RemoveUserFromGroup(ctx context.Context, groupGUID, targetSubjectID string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		groupID, err := resolveGroupID(ctx, tx, groupGUID)
		if err != nil {
			return err
		}
		userID, err := resolveUserID(ctx, tx, targetSubjectID)
		if err != nil {
			return err
		}

		result, err := tx.NewDelete().
			Model((*models.GroupUser)(nil)).
			Where("group_id = ?", groupID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete group membership: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return notFound("group membership", fmt.Sprintf("%s in %s", targetSubjectID, groupGUID))
		}
		return nil
	})
}

// AssignRoleToGroup attaches role to the group. A role already attached is a conflict.
func (r *BunMembershipRepository) AssignRoleToGroup(ctx context.Context, groupGUID string, role auth.Role) error {
	if !role.Valid() {
		return fmt.Errorf("assign group role: %w: %d", auth.ErrUnknownRole, int(role))
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		groupID, err := resolveGroupID(ctx, tx, groupGUID)
		if err != nil {
			return err
		}

		exists, err := tx.NewSelect().
			Model((*models.GroupRole)(nil)).
			Where("group_id = ?", groupID).
			Where("role = ?", int16(role)).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check group role: %w", err)
		}
		if exists {
			return conflict("group role", fmt.Sprintf("%s on %s", role, groupGUID))
		}

		row := &models.GroupRole{GroupID: groupID, Role: int16(role)}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			if isDuplicateKeyError(err) {
				return conflict("group role", fmt.Sprintf("%s on %s", role, groupGUID))
			}
			return fmt.Errorf("create group role: %w", err)
		}

		// Role changes count as a group update
		if _, err := tx.NewUpdate().
			Model((*models.Group)(nil)).
			Set("updated_at = ?", r.now()).
			Where("id = ?", groupID).
			Exec(ctx); err != nil {
			return fmt.Errorf("touch group: %w", err)
		}
		return nil
	})
}

// RemoveRoleFromGroup detaches role from the group. Detaching an absent role is NotFound.
func (r *BunMembershipRepository) RemoveRoleFromGroup(ctx context.Context, groupGUID string, role auth.Role) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		groupID, err := resolveGroupID(ctx, tx, groupGUID)
		if err != nil {
			return err
		}

		result, err := tx.NewDelete().
			Model((*models.GroupRole)(nil)).
			Where("group_id = ?", groupID).
			Where("role = ?", int16(role)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete group role: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return notFound("group role", fmt.Sprintf("%s on %s", role, groupGUID))
		}

		if _, err := tx.NewUpdate().
			Model((*models.Group)(nil)).
			Set("updated_at = ?", r.now()).
			Where("id = ?", groupID).
			Exec(ctx); err != nil {
			return fmt.Errorf("touch group: %w", err)
		}
		return nil
	})
}

// RolesForSubject walks users -> group_users -> group_roles and returns the
// distinct role values. A subject with no user row or no groups gets an empty slice.
func (r *BunMembershipRepository) RolesForSubject(ctx context.Context, subjectID string) ([]auth.Role, error) {
	var values []int16
	err := r.db.NewSelect().
		TableExpr("group_roles AS gr").
		ColumnExpr("DISTINCT gr.role").
		Join("JOIN group_users AS gu ON gu.group_id = gr.group_id").
		Join("JOIN users AS u ON u.id = gu.user_id").
		Where("u.subject_id = ?", subjectID).
		OrderExpr("gr.role ASC").
		Scan(ctx, &values)
	if err != nil {
		return nil, fmt.Errorf("roles for subject: %w", err)
	}
	return rolesFromValues(values), nil
}
