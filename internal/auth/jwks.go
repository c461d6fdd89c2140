package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// JWKSVerifierConfig configures verification against a fixed JWKS URL.
type JWKSVerifierConfig struct {
	JWKSURL         string
	Issuer          string
	ClientID        string
	RealmRolesClaim string
	RefreshInterval time.Duration
	Leeway          time.Duration
	HTTPClient      *http.Client
}

// JWKSVerifier validates RS256 tokens with keys fetched from a JWKS endpoint.
type JWKSVerifier struct {
	jwks            keyfunc.Keyfunc
	issuer          string
	audience        string
	realmRolesClaim string
	leeway          time.Duration
}

// NewJWKSVerifier builds a verifier backed by a background-refreshed JWKS storage.
// The first fetch is allowed to fail so the service starts while the IdP is down.
func NewJWKSVerifier(cfg JWKSVerifierConfig, logger logrus.FieldLogger) (*JWKSVerifier, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	storage, err := jwkset.NewStorageFromHTTP(cfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    client,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           cfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.WithError(err).WithField("url", cfg.JWKSURL).Error("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create jwks storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return NewJWKSVerifierWithKeyfunc(k, cfg), nil
}

// NewJWKSVerifierWithKeyfunc wraps an existing keyfunc, e.g. one built from static JWKS JSON.
func NewJWKSVerifierWithKeyfunc(k keyfunc.Keyfunc, cfg JWKSVerifierConfig) *JWKSVerifier {
	return &JWKSVerifier{
		jwks:            k,
		issuer:          cfg.Issuer,
		audience:        cfg.ClientID,
		realmRolesClaim: cfg.RealmRolesClaim,
		leeway:          cfg.Leeway,
	}
}

// Verify implements TokenVerifier.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (*VerifiedToken, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, v.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) && v.keysMissing(ctx) {
			return nil, fmt.Errorf("%w: %v", ErrKeySourceUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token not valid", ErrInvalidToken)
	}

	return NewVerifiedToken(map[string]any(claims), v.realmRolesClaim)
}

// keysMissing reports an empty key storage, which means the JWKS endpoint has
// not been fetched successfully yet.
func (v *JWKSVerifier) keysMissing(ctx context.Context) bool {
	keys, err := v.jwks.Storage().KeyReadAll(ctx)
	return err != nil || len(keys) == 0
}
