package iam

import (
	"context"
	"fmt"

	"github.com/lumenforge/lumenforge/internal/auth"
)

// BearerAuthenticator authenticates requests carrying an identity provider
// access token in the Authorization header.
//
//  1. Extract "Authorization: Bearer <token>"; return (nil, nil) if absent
//  2. Verify signature, issuer, audience and expiry via the TokenVerifier
//  3. Resolve application roles via the RoleResolver
//  4. Construct an immutable Principal
//
// This authenticator is stateless and safe for concurrent use.
type BearerAuthenticator struct {
	verifier auth.TokenVerifier
	resolver *RoleResolver
}

// NewBearerAuthenticator creates a bearer token authenticator.
func NewBearerAuthenticator(verifier auth.TokenVerifier, resolver *RoleResolver) *BearerAuthenticator {
	return &BearerAuthenticator{verifier: verifier, resolver: resolver}
}

// Authenticate validates the bearer token and resolves roles.
//
// Returns:
//   - (nil, nil) if no bearer token is present
//   - (nil, error wrapping auth.ErrInvalidToken) if the token is rejected
//   - (nil, error) if role resolution fails
//   - (*Principal, nil) on success
func (a *BearerAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	raw := auth.BearerToken(req.Headers)
	if raw == "" {
		return nil, nil
	}

	token, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	resolution, err := a.resolver.Resolve(ctx, token.Subject, token.TokenID, token.RealmRoles)
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", token.Subject, err)
	}

	realmRoles := make([]string, len(token.RealmRoles))
	copy(realmRoles, token.RealmRoles)

	return &Principal{
		Subject:    token.Subject,
		TokenID:    token.TokenID,
		RealmRoles: realmRoles,
		Roles:      resolution.Roles,
		RoleSource: resolution.Source,
	}, nil
}
