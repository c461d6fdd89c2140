package repository

import (
	"context"
	"testing"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBunUserRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunUserRepository(db)
	ctx := context.Background()

	t.Run("create new subject", func(t *testing.T) {
		user := &models.User{SubjectID: "a1b2c3"}
		require.NoError(t, repo.Create(ctx, user))
		assert.NotZero(t, user.ID)
		assert.False(t, user.JoinedAt.IsZero())

		retrieved, err := repo.GetBySubject(ctx, "a1b2c3")
		require.NoError(t, err)
		assert.Equal(t, user.ID, retrieved.ID)
		assert.Equal(t, "a1b2c3", retrieved.SubjectID)
	})

	t.Run("duplicate subject is a conflict", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{SubjectID: "a1b2c3"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Contains(t, err.Error(), "a1b2c3")
	})
}

func TestBunUserRepository_GetBySubject_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunUserRepository(db)

	_, err := repo.GetBySubject(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var entityErr *EntityError
	require.ErrorAs(t, err, &entityErr)
	assert.Equal(t, "user", entityErr.Entity)
	assert.Equal(t, "missing", entityErr.Key)
}

func TestBunUserRepository_ResolveUserIDBySubject(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunUserRepository(db)
	ctx := context.Background()

	user := createTestUser(t, repo, "resolver")

	id, err := repo.ResolveUserIDBySubject(ctx, "resolver")
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = repo.ResolveUserIDBySubject(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBunUserRepository_DeleteCascadesMemberships(t *testing.T) {
	db := setupTestDB(t)
	repos := newTestRepos(db)
	ctx := context.Background()

	createTestUser(t, repos.users, "leaver")
	group := createTestGroup(t, repos.groups, "Field Techs")
	require.NoError(t, repos.memberships.AssignRoleToGroup(ctx, group.GUID, auth.RoleDeviceRead))
	_, err := repos.memberships.AssignUserToGroup(ctx, "admin", "leaver", group.GUID)
	require.NoError(t, err)

	deleted, err := repos.users.DeleteBySubject(ctx, "leaver")
	require.NoError(t, err)
	assert.Equal(t, "leaver", deleted.SubjectID)

	members, err := repos.groups.ListMembers(ctx, group.GUID)
	require.NoError(t, err)
	assert.Empty(t, members)

	// The group and its roles survive
	roles, err := repos.groups.ListRoles(ctx, group.GUID)
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{auth.RoleDeviceRead}, roles)

	_, err = repos.users.DeleteBySubject(ctx, "leaver")
	assert.ErrorIs(t, err, ErrNotFound)
}
