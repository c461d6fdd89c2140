package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRealmRoles(t *testing.T) {
	tests := []struct {
		name      string
		claims    map[string]any
		claimPath string
		want      []string
		wantErr   bool
	}{
		{
			name: "keycloak realm_access",
			claims: map[string]any{
				"realm_access": map[string]any{
					"roles": []any{"REALM_ADMIN", "offline_access"},
				},
			},
			claimPath: "realm_access.roles",
			want:      []string{"REALM_ADMIN", "offline_access"},
		},
		{
			name: "default path",
			claims: map[string]any{
				"realm_access": map[string]any{"roles": []any{"REALM_OWNER"}},
			},
			want: []string{"REALM_OWNER"},
		},
		{
			name:      "flat claim",
			claims:    map[string]any{"roles": []any{"a", "b"}},
			claimPath: "roles",
			want:      []string{"a", "b"},
		},
		{
			name:      "missing claim",
			claims:    map[string]any{"sub": "u1"},
			claimPath: "realm_access.roles",
			want:      []string{},
		},
		{
			name:      "intermediate not an object",
			claims:    map[string]any{"realm_access": "oops"},
			claimPath: "realm_access.roles",
			want:      []string{},
		},
		{
			name: "roles not an array",
			claims: map[string]any{
				"realm_access": map[string]any{"roles": map[string]any{"x": 1}},
			},
			claimPath: "realm_access.roles",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRealmRoles(tt.claims, tt.claimPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTokenID(t *testing.T) {
	id, err := ExtractTokenID(map[string]any{"jti": "t-1", "sid": "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "t-1", id)

	id, err = ExtractTokenID(map[string]any{"sid": "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", id)

	_, err = ExtractTokenID(map[string]any{"jti": ""})
	assert.Error(t, err)
}

func TestNewVerifiedToken(t *testing.T) {
	claims := map[string]any{
		"sub":          "subject-1",
		"jti":          "token-1",
		"realm_access": map[string]any{"roles": []any{"REALM_ADMIN"}},
	}

	token, err := NewVerifiedToken(claims, "")
	require.NoError(t, err)
	assert.Equal(t, "subject-1", token.Subject)
	assert.Equal(t, "token-1", token.TokenID)
	assert.Equal(t, []string{"REALM_ADMIN"}, token.RealmRoles)

	_, err = NewVerifiedToken(map[string]any{"jti": "token-1"}, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewVerifiedToken(map[string]any{"sub": "subject-1"}, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
