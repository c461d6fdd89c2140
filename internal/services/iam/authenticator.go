package iam

import (
	"context"
	"net/http"
)

// Authenticator turns request credentials into a Principal.
//
// An authenticator that finds no credentials it understands returns (nil, nil)
// so the next one in the chain can try. Any error ends the chain.
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (*Principal, error)
}

// AuthenticatorFunc adapts a plain function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, req AuthRequest) (*Principal, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	return f(ctx, req)
}

// AuthRequest is the transport-neutral view of an incoming request.
type AuthRequest struct {
	Headers http.Header
}

// NewAuthRequest captures the credential-bearing parts of r.
func NewAuthRequest(r *http.Request) AuthRequest {
	return AuthRequest{Headers: r.Header.Clone()}
}
