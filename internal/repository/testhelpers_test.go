package repository

import (
	"context"
	"testing"

	"github.com/lumenforge/lumenforge/internal/db/bunx"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/lumenforge/lumenforge/internal/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// setupTestDB opens a fresh in-memory SQLite database with the RBAC schema applied
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)

	return db
}

type testRepos struct {
	users       UserRepository
	groups      GroupRepository
	memberships MembershipRepository
}

func newTestRepos(db *bun.DB) testRepos {
	return testRepos{
		users:       NewBunUserRepository(db),
		groups:      NewBunGroupRepository(db),
		memberships: NewBunMembershipRepository(db),
	}
}

func createTestUser(t *testing.T, repo UserRepository, subject string) *models.User {
	t.Helper()
	user := &models.User{SubjectID: subject}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func createTestGroup(t *testing.T, repo GroupRepository, name string) *models.Group {
	t.Helper()
	group := &models.Group{Name: name, Description: "test group " + name}
	require.NoError(t, repo.Create(context.Background(), group))
	return group
}
