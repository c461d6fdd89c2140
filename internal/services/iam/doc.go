// Package iam resolves authenticated callers into application roles and
// exposes the user, group and membership operations behind /api/v1/auth.
//
// Request flow:
//
//	Request → BearerAuthenticator → TokenVerifier (signature, issuer, audience)
//	       ↓
//	   RoleResolver: cache (subject, token id) → privileged realm role → database
//	       ↓
//	   Principal (immutable, in request context) → RequireRole gate
//
// Roles are resolved once per token and cached with an absolute TTL. A role
// change reaches tokens that are already cached only after that TTL elapses;
// a freshly issued token has a new token id and is resolved immediately.
package iam
