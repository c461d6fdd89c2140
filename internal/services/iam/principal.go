package iam

import (
	"context"

	"github.com/lumenforge/lumenforge/internal/auth"
)

// Principal represents an authenticated caller with pre-resolved roles.
//
// This struct is IMMUTABLE after construction. Roles are computed once by the
// RoleResolver and never modified afterwards; authorization only reads them.
type Principal struct {
	// Subject is the stable subject id issued by the identity provider.
	Subject string

	// TokenID is the jti (or sid) of the presented token. Together with
	// Subject it keys the role cache.
	TokenID string

	// RealmRoles are the identity provider's own roles from the token.
	// They are kept alongside the application roles, never replaced by them.
	RealmRoles []string

	// Roles is the effective application role set.
	Roles auth.RoleSet

	// RoleSource records how Roles was obtained: cache, privileged or database.
	RoleSource string
}

// HasRole reports whether the principal holds the application role.
func (p *Principal) HasRole(role auth.Role) bool {
	if p == nil {
		return false
	}
	return p.Roles.Has(role)
}

type principalContextKey struct{}

// WithPrincipal stores the principal in the request context.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	return principal, ok && principal != nil
}
