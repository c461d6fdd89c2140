package iam

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/db/bunx"
	"github.com/lumenforge/lumenforge/internal/logging"
	"github.com/lumenforge/lumenforge/internal/migrations"
	"github.com/lumenforge/lumenforge/internal/repository"
	"github.com/lumenforge/lumenforge/internal/services/iam"
)

func newService(t *testing.T) iam.Service {
	t.Helper()

	db, err := bunx.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)

	return iam.NewIAMService(iam.IAMServiceDependencies{
		Users:       repository.NewBunUserRepository(db),
		Groups:      repository.NewBunGroupRepository(db),
		Memberships: repository.NewBunMembershipRepository(db),
		Logger:      logging.Discard(),
	})
}

func TestBootstrap_IsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	opts := BootstrapOptions{
		Group:    "Platform Admins",
		Subjects: []string{"admin-1"},
		Roles:    []string{"UserCreate", "GroupCreate"},
	}

	var out bytes.Buffer
	require.NoError(t, Bootstrap(ctx, svc, opts, &out))
	assert.Contains(t, out.String(), "Created group 'Platform Admins'")
	assert.Contains(t, out.String(), "Added user 'admin-1'")

	out.Reset()
	require.NoError(t, Bootstrap(ctx, svc, opts, &out))
	assert.Contains(t, out.String(), "exists, reusing")
	assert.Contains(t, out.String(), "Role 'UserCreate' already attached")
	assert.Contains(t, out.String(), "User 'admin-1' already registered")
	assert.Contains(t, out.String(), "already a member")

	groups, err := svc.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	roles, err := svc.GetRoles(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []auth.Role{auth.RoleUserCreate, auth.RoleGroupCreate}, roles)

	details, err := svc.GetGroup(ctx, groups[0].GUID)
	require.NoError(t, err)
	require.Len(t, details.Members, 1)
	require.NotNil(t, details.Members[0].AssignedBy)
	assert.Equal(t, bootstrapActor, *details.Members[0].AssignedBy)
}

func TestBootstrap_AllRoles(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, Bootstrap(ctx, svc, BootstrapOptions{
		Group:       "Owners",
		Description: "Full catalog holders",
		Subjects:    []string{"owner-1"},
		AllRoles:    true,
	}, &bytes.Buffer{}))

	roles, err := svc.GetRoles(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, auth.AllRoles(), roles)
}

func TestBootstrap_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	err := Bootstrap(ctx, svc, BootstrapOptions{Group: "X", Roles: []string{"DeviceRead", "NotARole"}}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role(s): NotARole")

	err = Bootstrap(ctx, svc, BootstrapOptions{Group: "X"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to do")

	groups, err := svc.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
