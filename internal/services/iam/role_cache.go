package iam

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/lumenforge/lumenforge/internal/auth"
)

// CacheKey identifies one resolved token. Keying by token id as well as
// subject means a newly issued token never sees an entry written for an older one.
type CacheKey struct {
	Subject string
	TokenID string
}

// RoleCache stores resolved role sets with an absolute expiry.
//
// Return values of Get:
//   - (roles, true, nil): live entry
//   - (_, false, nil): no entry or entry expired
//   - (_, false, error): backend failure (callers treat it as a miss)
type RoleCache interface {
	Get(ctx context.Context, key CacheKey) (auth.RoleSet, bool, error)
	Set(ctx context.Context, key CacheKey, roles auth.RoleSet) error
}

type cacheEntry struct {
	roles     auth.RoleSet
	expiresAt time.Time
}

// MemoryRoleCache is a process-wide RoleCache.
//
// Entries live in a concurrent map with per-bucket locking, so lookups for
// unrelated keys never contend on a single mutex. Expiry is absolute from
// the time of Set; reads never extend it.
type MemoryRoleCache struct {
	entries *xsync.MapOf[CacheKey, cacheEntry]
	ttl     time.Duration
	clock   clock.Clock
}

// NewMemoryRoleCache creates an empty cache. A nil clock means wall time.
func NewMemoryRoleCache(ttl time.Duration, clk clock.Clock) *MemoryRoleCache {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryRoleCache{
		entries: xsync.NewMapOf[CacheKey, cacheEntry](),
		ttl:     ttl,
		clock:   clk,
	}
}

// Get returns the cached set while it is still within its TTL.
func (c *MemoryRoleCache) Get(_ context.Context, key CacheKey) (auth.RoleSet, bool, error) {
	entry, ok := c.entries.Load(key)
	if !ok {
		return auth.RoleSet{}, false, nil
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		return auth.RoleSet{}, false, nil
	}
	return entry.roles, true, nil
}

// Set stores roles under key. Concurrent writers for the same key: last write wins.
func (c *MemoryRoleCache) Set(_ context.Context, key CacheKey, roles auth.RoleSet) error {
	c.entries.Store(key, cacheEntry{
		roles:     roles,
		expiresAt: c.clock.Now().Add(c.ttl),
	})
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryRoleCache) Len() int {
	return c.entries.Size()
}

// Sweep drops expired entries and returns how many were removed.
func (c *MemoryRoleCache) Sweep() int {
	now := c.clock.Now()
	removed := 0
	c.entries.Range(func(key CacheKey, entry cacheEntry) bool {
		if !now.Before(entry.expiresAt) {
			// Only delete if the entry was not refreshed since Range observed it
			c.entries.Compute(key, func(current cacheEntry, loaded bool) (cacheEntry, bool) {
				if !loaded || now.Before(current.expiresAt) {
					return current, !loaded
				}
				removed++
				return current, true
			})
		}
		return true
	})
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
// A non-positive interval disables sweeping.
func (c *MemoryRoleCache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
