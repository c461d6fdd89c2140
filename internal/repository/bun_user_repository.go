package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/uptrace/bun"
)

// ========================================
// User Repository
// ========================================

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) UserRepository {
	return &BunUserRepository{db: db}
}

// Create registers a subject. A second registration of the same subject is a conflict.
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.JoinedAt.IsZero() {
		user.JoinedAt = time.Now().UTC()
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.User)(nil)).
			Where("subject_id = ?", user.SubjectID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if exists {
			return conflict("user", user.SubjectID)
		}

		if _, err := tx.NewInsert().Model(user).Returning("id").Exec(ctx); err != nil {
			if isDuplicateKeyError(err) {
				return conflict("user", user.SubjectID)
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

// GetBySubject retrieves a user by IdP subject id
func (r *BunUserRepository) GetBySubject(ctx context.Context, subjectID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("subject_id = ?", subjectID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("user", subjectID)
		}
		return nil, fmt.Errorf("get user by subject: %w", err)
	}
	return user, nil
}

// ResolveUserIDBySubject maps a subject id to the internal surrogate key
func (r *BunUserRepository) ResolveUserIDBySubject(ctx context.Context, subjectID string) (int64, error) {
	return resolveUserID(ctx, r.db, subjectID)
}

// DeleteBySubject deletes the user's memberships and then the user
func (r *BunUserRepository) DeleteBySubject(ctx context.Context, subjectID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(user).
			Where("subject_id = ?", subjectID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("user", subjectID)
			}
			return fmt.Errorf("get user: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*models.GroupUser)(nil)).
			Where("user_id = ?", user.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete user memberships: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*models.User)(nil)).
			Where("id = ?", user.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// resolveUserID runs against a DB or an open transaction.
func resolveUserID(ctx context.Context, db bun.IDB, subjectID string) (int64, error) {
	var id int64
	err := db.NewSelect().
		Model((*models.User)(nil)).
		Column("id").
		Where("subject_id = ?", subjectID).
		Scan(ctx, &id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, notFound("user", subjectID)
		}
		return 0, fmt.Errorf("resolve user id: %w", err)
	}
	return id, nil
}
