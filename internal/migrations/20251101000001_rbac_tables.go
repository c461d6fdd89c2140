package migrations

import (
	"context"
	"fmt"

	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20251101000001, down_20251101000001)
}

// up_20251101000001 creates the users, groups and join tables backing role resolution.
func up_20251101000001(ctx context.Context, db *bun.DB) error {
	// 1. users
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	// 2. groups
	fmt.Print(" [up] creating groups table...")
	_, err = db.NewCreateTable().
		Model((*models.Group)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create groups table: %w", err)
	}
	fmt.Println(" OK")

	// 3. group_roles
	fmt.Print(" [up] creating group_roles table...")
	_, err = db.NewCreateTable().
		Model((*models.GroupRole)(nil)).
		IfNotExists().
		ForeignKey(`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create group_roles table: %w", err)
	}
	fmt.Println(" OK")

	// 4. group_users
	fmt.Print(" [up] creating group_users table...")
	_, err = db.NewCreateTable().
		Model((*models.GroupUser)(nil)).
		IfNotExists().
		ForeignKey(`("group_id") REFERENCES "groups" ("id") ON DELETE CASCADE`).
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create group_users table: %w", err)
	}

	// Role resolution walks group_users by user_id
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_group_users_user_id ON group_users(user_id)`)
	if err != nil {
		return fmt.Errorf("failed to create group_users user_id index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20251101000001 drops the RBAC tables in reverse dependency order.
func down_20251101000001(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		name  string
		model any
	}{
		{"group_users", (*models.GroupUser)(nil)},
		{"group_roles", (*models.GroupRole)(nil)},
		{"groups", (*models.Group)(nil)},
		{"users", (*models.User)(nil)},
	}

	for _, table := range tables {
		fmt.Printf(" [down] dropping %s table...", table.name)
		if _, err := db.NewDropTable().Model(table.model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table.name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
