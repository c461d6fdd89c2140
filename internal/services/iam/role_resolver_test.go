package iam

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/lumenforge/internal/auth"
	"github.com/lumenforge/lumenforge/internal/logging"
	"github.com/lumenforge/lumenforge/internal/telemetry"
)

// stubRoleSource serves roles from a mutable map and counts queries.
type stubRoleSource struct {
	mu    sync.Mutex
	roles map[string][]auth.Role
	err   error
	calls atomic.Int32
}

func newStubRoleSource() *stubRoleSource {
	return &stubRoleSource{roles: map[string][]auth.Role{}}
}

func (s *stubRoleSource) RolesForSubject(ctx context.Context, subjectID string) ([]auth.Role, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]auth.Role{}, s.roles[subjectID]...), nil
}

func (s *stubRoleSource) set(subject string, roles ...auth.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[subject] = roles
}

func (s *stubRoleSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// failingCache errors on every call.
type failingCache struct{}

func (failingCache) Get(context.Context, CacheKey) (auth.RoleSet, bool, error) {
	return auth.RoleSet{}, false, errors.New("cache unavailable")
}

func (failingCache) Set(context.Context, CacheKey, auth.RoleSet) error {
	return errors.New("cache unavailable")
}

type resolverFixture struct {
	resolver *RoleResolver
	source   *stubRoleSource
	clock    *clock.Mock
	metrics  *telemetry.Metrics
}

func newResolverFixture(t *testing.T, ttl time.Duration) resolverFixture {
	t.Helper()
	mock := clock.NewMock()
	source := newStubRoleSource()
	metrics := telemetry.NewMetrics()
	resolver := NewRoleResolver(RoleResolverDependencies{
		Cache:   NewMemoryRoleCache(ttl, mock),
		Source:  source,
		Metrics: metrics,
		Logger:  logging.Discard(),
	}, []string{"REALM_ADMIN", "REALM_OWNER"})
	return resolverFixture{resolver: resolver, source: source, clock: mock, metrics: metrics}
}

func TestRoleResolver_DatabasePathThenCache(t *testing.T) {
	f := newResolverFixture(t, 5*time.Minute)
	f.source.set("alice", auth.RoleDeviceRead, auth.RoleVendorRead)
	ctx := context.Background()

	first, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	require.NoError(t, err)
	assert.Equal(t, telemetry.SourceDatabase, first.Source)
	assert.Equal(t, []string{"DeviceRead", "VendorRead"}, first.Roles.Names())

	second, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	require.NoError(t, err)
	assert.Equal(t, telemetry.SourceCache, second.Source)
	assert.True(t, first.Roles.Equal(second.Roles))
	assert.Equal(t, int32(1), f.source.calls.Load())
}

func TestRoleResolver_PrivilegedShortCircuit(t *testing.T) {
	f := newResolverFixture(t, 5*time.Minute)
	ctx := context.Background()

	res, err := f.resolver.Resolve(ctx, "root", "jti-1", []string{"offline_access", "REALM_OWNER"})
	require.NoError(t, err)
	assert.Equal(t, telemetry.SourcePrivileged, res.Source)
	assert.Equal(t, len(auth.AllRoles()), res.Roles.Len())
	for _, role := range auth.AllRoles() {
		assert.True(t, res.Roles.Has(role), role.String())
	}
	assert.Zero(t, f.source.calls.Load(), "privileged callers never reach the database")

	// Cached like any other resolution
	res, err = f.resolver.Resolve(ctx, "root", "jti-1", []string{"REALM_OWNER"})
	require.NoError(t, err)
	assert.Equal(t, telemetry.SourceCache, res.Source)
	assert.Equal(t, len(auth.AllRoles()), res.Roles.Len())
}

func TestRoleResolver_PrivilegedNamesAreConfigurable(t *testing.T) {
	resolver := NewRoleResolver(RoleResolverDependencies{Source: newStubRoleSource()}, []string{"platform-owner"})

	assert.True(t, resolver.IsPrivileged([]string{"platform-owner"}))
	assert.False(t, resolver.IsPrivileged([]string{"REALM_ADMIN"}))
	assert.False(t, resolver.IsPrivileged(nil))
}

func TestRoleResolver_DatabaseErrorFailsAndIsNotCached(t *testing.T) {
	f := newResolverFixture(t, 5*time.Minute)
	f.source.set("alice", auth.RoleDeviceRead)
	f.source.fail(errors.New("connection refused"))
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	// Database recovers: the next request resolves instead of replaying a failure
	f.source.fail(nil)
	res, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	require.NoError(t, err)
	assert.Equal(t, telemetry.SourceDatabase, res.Source)
	assert.True(t, res.Roles.Has(auth.RoleDeviceRead))
	assert.Equal(t, int32(2), f.source.calls.Load())

	expected := `
# HELP lumen_role_resolutions_total Role resolutions by source (cache, privileged, database) and outcome.
# TYPE lumen_role_resolutions_total counter
lumen_role_resolutions_total{outcome="error",source="database"} 1
lumen_role_resolutions_total{outcome="ok",source="database"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "lumen_role_resolutions_total"))
}

func TestRoleResolver_StalenessBoundedByTTL(t *testing.T) {
	f := newResolverFixture(t, 5*time.Minute)
	f.source.set("alice", auth.RoleDeviceRead)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	require.NoError(t, err)

	// Role change persisted
	f.source.set("alice", auth.RoleDeviceRead, auth.RoleDeviceUpdate)

	f.clock.Add(4*time.Minute + 59*time.Second)
	stale, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	require.NoError(t, err)
	assert.False(t, stale.Roles.Has(auth.RoleDeviceUpdate), "within the TTL the old set may be served")

	// A new token is not blocked by the old entry
	fresh, err := f.resolver.Resolve(ctx, "alice", "jti-2", nil)
	require.NoError(t, err)
	assert.True(t, fresh.Roles.Has(auth.RoleDeviceUpdate))

	f.clock.Add(time.Second)
	expired, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	require.NoError(t, err)
	assert.Equal(t, telemetry.SourceDatabase, expired.Source)
	assert.True(t, expired.Roles.Has(auth.RoleDeviceUpdate), "after the TTL the new set must be observed")
}

func TestRoleResolver_CacheFailureFallsBackToDatabase(t *testing.T) {
	source := newStubRoleSource()
	source.set("alice", auth.RoleStockRead)
	resolver := NewRoleResolver(RoleResolverDependencies{
		Cache:  failingCache{},
		Source: source,
		Logger: logging.Discard(),
	}, []string{"REALM_ADMIN"})

	res, err := resolver.Resolve(context.Background(), "alice", "jti-1", nil)
	require.NoError(t, err)
	assert.Equal(t, telemetry.SourceDatabase, res.Source)
	assert.True(t, res.Roles.Has(auth.RoleStockRead))
}

func TestRoleResolver_HonoursCancellation(t *testing.T) {
	f := newResolverFixture(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRoleResolver_ConcurrentMissesConverge(t *testing.T) {
	f := newResolverFixture(t, time.Minute)
	f.source.set("alice", auth.RoleRentalRead)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.resolver.Resolve(ctx, "alice", "jti-1", nil)
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			if !res.Roles.Has(auth.RoleRentalRead) {
				t.Errorf("missing RentalRead in %v", res.Roles.Names())
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, f.source.calls.Load(), int32(1))
}
