package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKeyID  = "test-key"
	testIssuer = "https://idp.test/realms/lumenforge"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		},
	}
	data, _ := json.Marshal(jwks)
	return data
}

func newTestVerifier(t *testing.T, key *rsa.PrivateKey) *JWKSVerifier {
	t.Helper()
	kf, err := keyfunc.NewJWKSetJSON(buildJWKSetJSON(&key.PublicKey, testKeyID))
	require.NoError(t, err)
	return NewJWKSVerifierWithKeyfunc(kf, JWKSVerifierConfig{
		Issuer:          testIssuer,
		ClientID:        "lumen-api",
		RealmRolesClaim: DefaultRealmRolesClaim,
	})
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":          "0b6f2f56-7d3e-4d8a-9a57-3f1c2a1d9e01",
		"jti":          "jti-1",
		"iss":          testIssuer,
		"aud":          "lumen-api",
		"exp":          jwt.NewNumericDate(now.Add(time.Hour)),
		"iat":          jwt.NewNumericDate(now),
		"realm_access": map[string]any{"roles": []string{"REALM_ADMIN", "offline_access"}},
	}
}

func TestJWKSVerifier_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	verifier := newTestVerifier(t, key)

	verified, err := verifier.Verify(context.Background(), signToken(t, key, baseClaims()))
	require.NoError(t, err)

	assert.Equal(t, "0b6f2f56-7d3e-4d8a-9a57-3f1c2a1d9e01", verified.Subject)
	assert.Equal(t, "jti-1", verified.TokenID)
	assert.Equal(t, []string{"REALM_ADMIN", "offline_access"}, verified.RealmRoles)
}

func TestJWKSVerifier_Rejects(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	verifier := newTestVerifier(t, key)

	tests := []struct {
		name  string
		token func() string
	}{
		{
			name: "expired",
			token: func() string {
				claims := baseClaims()
				claims["exp"] = jwt.NewNumericDate(time.Now().Add(-time.Hour))
				return signToken(t, key, claims)
			},
		},
		{
			name: "wrong issuer",
			token: func() string {
				claims := baseClaims()
				claims["iss"] = "https://evil.test"
				return signToken(t, key, claims)
			},
		},
		{
			name: "wrong audience",
			token: func() string {
				claims := baseClaims()
				claims["aud"] = "someone-else"
				return signToken(t, key, claims)
			},
		},
		{
			name: "signed by unknown key",
			token: func() string {
				return signToken(t, otherKey, baseClaims())
			},
		},
		{
			name: "missing token id",
			token: func() string {
				claims := baseClaims()
				delete(claims, "jti")
				return signToken(t, key, claims)
			},
		},
		{
			name:  "garbage",
			token: func() string { return "not-a-jwt" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), tt.token())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWKSVerifier_KeySourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	logger, hook := logtest.NewNullLogger()
	verifier, err := NewJWKSVerifier(JWKSVerifierConfig{
		JWKSURL:         srv.URL,
		Issuer:          testIssuer,
		ClientID:        "lumen-api",
		RealmRolesClaim: DefaultRealmRolesClaim,
	}, logger)
	require.NoError(t, err)
	require.NotEmpty(t, hook.AllEntries(), "failed first fetch should be logged")

	key := generateTestKey(t)
	_, err = verifier.Verify(context.Background(), signToken(t, key, baseClaims()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeySourceUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	headers := http.Header{}
	assert.Equal(t, "", BearerToken(headers))

	headers.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", BearerToken(headers))

	headers.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Equal(t, "", BearerToken(headers))
}
