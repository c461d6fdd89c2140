package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"
)

var (
	// ErrInvalidToken marks a bearer token that failed verification. Callers map it to 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrKeySourceUnavailable marks a verification that could not run because the
	// identity provider's signing keys could not be fetched. Callers map it to 500.
	ErrKeySourceUnavailable = errors.New("signing keys unavailable")
)

// VerifiedToken is the output of signature, issuer and audience validation.
// It is the input to role resolution.
type VerifiedToken struct {
	// Subject is the IdP subject id (sub claim).
	Subject string
	// TokenID identifies this token or session (jti, falling back to sid).
	TokenID string
	// RealmRoles are the roles the IdP embedded in the token itself.
	RealmRoles []string
	// Claims holds the raw verified claim set.
	Claims map[string]any
}

// TokenVerifier validates a raw bearer token.
//
// Implementations:
//   - JWKSVerifier: golang-jwt parsing against a JWKS endpoint (Keycloak certs URL)
//   - OIDCVerifier: go-oidc-middleware with issuer discovery
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*VerifiedToken, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// Returns "" when no bearer credentials are present.
func BearerToken(headers http.Header) string {
	tokenStrings := [][]options.TokenStringOption{
		{}, // Authorization: Bearer
	}
	token, err := oidctoken.GetTokenString(headers.Get, tokenStrings)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewVerifiedToken pulls the identity fields out of an already verified claim set.
func NewVerifiedToken(claims map[string]any, realmRolesClaim string) (*VerifiedToken, error) {
	subject, err := ExtractClaimString(claims, "sub")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	tokenID, err := ExtractTokenID(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	realmRoles, err := ExtractRealmRoles(claims, realmRolesClaim)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &VerifiedToken{
		Subject:    subject,
		TokenID:    tokenID,
		RealmRoles: realmRoles,
		Claims:     claims,
	}, nil
}

// OIDCVerifierConfig configures discovery based verification.
type OIDCVerifierConfig struct {
	Issuer          string
	ClientID        string
	RealmRolesClaim string
	HTTPClient      *http.Client
}

// OIDCVerifier validates tokens using the issuer's discovery document and JWKS.
type OIDCVerifier struct {
	tokenHandler    *oidctoken.TokenHandler[map[string]any]
	realmRolesClaim string
	fetches         *fetchTracker
}

// fetchTracker counts failed discovery and JWKS requests.
type fetchTracker struct {
	next     http.RoundTripper
	failures atomic.Uint64
}

func (t *fetchTracker) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode >= http.StatusBadRequest {
		t.failures.Add(1)
	}
	return resp, err
}

// NewOIDCVerifier creates a verifier that discovers keys from cfg.Issuer.
// JWKS are loaded lazily so the service can start before the IdP is reachable.
func NewOIDCVerifier(cfg OIDCVerifierConfig) (*OIDCVerifier, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("oidc issuer is required")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		client = &clone
	}
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	tracker := &fetchTracker{next: next}
	client.Transport = tracker

	oidcOpts := []options.Option{
		options.WithIssuer(cfg.Issuer),
		options.WithLazyLoadJwks(true),
		options.WithHttpClient(client),
	}
	if cfg.ClientID != "" {
		oidcOpts = append(oidcOpts, options.WithRequiredAudience(cfg.ClientID))
	}

	tokenHandler, err := oidctoken.New[map[string]any](nil, oidcOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize oidc token handler: %w", err)
	}

	return &OIDCVerifier{
		tokenHandler:    tokenHandler,
		realmRolesClaim: cfg.RealmRolesClaim,
		fetches:         tracker,
	}, nil
}

// Verify implements TokenVerifier. A failure during which a discovery or JWKS
// fetch failed is reported as ErrKeySourceUnavailable rather than ErrInvalidToken.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*VerifiedToken, error) {
	failuresBefore := v.fetches.failures.Load()
	claims, err := v.tokenHandler.ParseToken(ctx, rawToken)
	if err != nil {
		if v.fetches.failures.Load() != failuresBefore {
			return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return NewVerifiedToken(claims, v.realmRolesClaim)
}
