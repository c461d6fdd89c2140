package auth

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// DefaultRealmRolesClaim is where Keycloak places realm-level roles.
const DefaultRealmRolesClaim = "realm_access.roles"

// ExtractRealmRoles reads the identity provider's realm roles from verified claims.
//
// claimPath is a dot separated path to a string array, for example
// "realm_access.roles" for Keycloak or "roles" for a flat claim. A missing claim
// yields an empty list: the token simply carries no realm roles.
func ExtractRealmRoles(claims map[string]any, claimPath string) ([]string, error) {
	if claimPath == "" {
		claimPath = DefaultRealmRolesClaim
	}

	segments := strings.Split(claimPath, ".")
	var current any = claims
	for _, segment := range segments {
		var node map[string]any
		if err := mapstructure.Decode(current, &node); err != nil || node == nil {
			return []string{}, nil
		}
		value, ok := node[segment]
		if !ok {
			return []string{}, nil
		}
		current = value
	}

	var roles []string
	if err := mapstructure.Decode(current, &roles); err != nil {
		return nil, fmt.Errorf("realm roles claim %s invalid format (expected string array): %w", claimPath, err)
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

// ExtractClaimString extracts a non-empty string claim from JWT claims.
func ExtractClaimString(claims map[string]any, claimField string) (string, error) {
	rawValue, ok := claims[claimField]
	if !ok {
		return "", fmt.Errorf("claim field %s not found", claimField)
	}

	value, ok := rawValue.(string)
	if !ok {
		return "", fmt.Errorf("claim field %s is not a string", claimField)
	}

	if value == "" {
		return "", fmt.Errorf("claim field %s is empty", claimField)
	}

	return value, nil
}

// ExtractTokenID returns the token identifier used to key role resolution.
// The jti claim is preferred; Keycloak session tokens without one fall back to sid.
func ExtractTokenID(claims map[string]any) (string, error) {
	if jti, err := ExtractClaimString(claims, "jti"); err == nil {
		return jti, nil
	}
	if sid, err := ExtractClaimString(claims, "sid"); err == nil {
		return sid, nil
	}
	return "", fmt.Errorf("token missing jti and sid claims")
}
