package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/bunx"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/uptrace/bun"
)

// ========================================
// Group Repository
// ========================================

// BunGroupRepository implements GroupRepository using Bun ORM
type BunGroupRepository struct {
	db *bun.DB
}

// NewBunGroupRepository creates a new Bun-based group repository
func NewBunGroupRepository(db *bun.DB) GroupRepository {
	return &BunGroupRepository{db: db}
}

// Create inserts a new group. Names are unique.
func (r *BunGroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.GUID == "" {
		group.GUID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = group.CreatedAt

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Group)(nil)).
			Where("name = ?", group.Name).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check group name: %w", err)
		}
		if exists {
			return conflict("group", fmt.Sprintf("'%s'", group.Name))
		}

		if _, err := tx.NewInsert().Model(group).Returning("id").Exec(ctx); err != nil {
			if isDuplicateKeyError(err) {
				return conflict("group", fmt.Sprintf("'%s'", group.Name))
			}
			return fmt.Errorf("create group: %w", err)
		}
		return nil
	})
}

// GetByGUID retrieves a group by its external GUID
func (r *BunGroupRepository) GetByGUID(ctx context.Context, guid string) (*models.Group, error) {
	if !bunx.IsUUID(guid) {
		return nil, notFound("group", guid)
	}

	group := new(models.Group)
	err := r.db.NewSelect().
		Model(group).
		Where("guid = ?", guid).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("group", guid)
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return group, nil
}

// ResolveGroupIDByGUID maps a group GUID to the internal surrogate key
func (r *BunGroupRepository) ResolveGroupIDByGUID(ctx context.Context, guid string) (int64, error) {
	return resolveGroupID(ctx, r.db, guid)
}

// List retrieves all groups ordered by name
func (r *BunGroupRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.NewSelect().
		Model(&groups).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// DeleteByGUID deletes role and member rows first, then the group
func (r *BunGroupRepository) DeleteByGUID(ctx context.Context, guid string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		groupID, err := resolveGroupID(ctx, tx, guid)
		if err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.GroupRole)(nil)).
			Where("group_id = ?", groupID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete group roles: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*models.GroupUser)(nil)).
			Where("group_id = ?", groupID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete group members: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*models.Group)(nil)).
			Where("id = ?", groupID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		return nil
	})
}

// ListRoles returns the roles attached to a group, ordered by value
func (r *BunGroupRepository) ListRoles(ctx context.Context, guid string) ([]auth.Role, error) {
	groupID, err := resolveGroupID(ctx, r.db, guid)
	if err != nil {
		return nil, err
	}

	var values []int16
	err = r.db.NewSelect().
		Model((*models.GroupRole)(nil)).
		Column("role").
		Where("group_id = ?", groupID).
		Order("role ASC").
		Scan(ctx, &values)
	if err != nil {
		return nil, fmt.Errorf("list group roles: %w", err)
	}
	return rolesFromValues(values), nil
}

// ListMembers returns the group's memberships joined with member subject ids
func (r *BunGroupRepository) ListMembers(ctx context.Context, guid string) ([]models.GroupMember, error) {
	groupID, err := resolveGroupID(ctx, r.db, guid)
	if err != nil {
		return nil, err
	}

	members := make([]models.GroupMember, 0)
	err = r.db.NewSelect().
		Model(&members).
		ColumnExpr("gu.group_id, gu.user_id, gu.joined_at, gu.assigned_by").
		ColumnExpr("u.subject_id").
		Join("JOIN users AS u ON u.id = gu.user_id").
		Where("gu.group_id = ?", groupID).
		OrderExpr("gu.joined_at ASC, u.subject_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}

// resolveGroupID runs against a DB or an open transaction.
// Malformed GUIDs are reported as not found instead of reaching the uuid column.
func resolveGroupID(ctx context.Context, db bun.IDB, guid string) (int64, error) {
	if !bunx.IsUUID(guid) {
		return 0, notFound("group", guid)
	}

	var id int64
	err := db.NewSelect().
		Model((*models.Group)(nil)).
		Column("id").
		Where("guid = ?", guid).
		Scan(ctx, &id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFound("group", guid)
		}
		return 0, fmt.Errorf("resolve group id: %w", err)
	}
	return id, nil
}

// rolesFromValues converts stored values, skipping anything outside the catalog.
func rolesFromValues(values []int16) []auth.Role {
	roles := make([]auth.Role, 0, len(values))
	for _, value := range values {
		role, err := auth.RoleFromValue(int(value))
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}
	return roles
}
