package auth

import (
	"slices"
)

// RoleSet is an immutable set of catalog roles.
//
// A RoleSet is frozen at construction; no method mutates it, so a value can be
// shared between goroutines and stored in request contexts without copying.
type RoleSet struct {
	roles map[Role]struct{}
}

// NewRoleSet builds a set from roles, dropping duplicates and non-catalog values.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		if role.Valid() {
			set[role] = struct{}{}
		}
	}
	return RoleSet{roles: set}
}

// FullRoleSet returns a set holding the entire catalog.
func FullRoleSet() RoleSet {
	return NewRoleSet(allRoles...)
}

// RoleSetFromNames builds a set from enum member names. Unknown names fail.
func RoleSetFromNames(names []string) (RoleSet, error) {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		role, err := ParseRole(name)
		if err != nil {
			return RoleSet{}, err
		}
		roles = append(roles, role)
	}
	return NewRoleSet(roles...), nil
}

// Has reports whether role is in the set.
func (s RoleSet) Has(role Role) bool {
	_, ok := s.roles[role]
	return ok
}

// Len returns the number of roles in the set.
func (s RoleSet) Len() int {
	return len(s.roles)
}

// Roles returns the members in ascending value order.
func (s RoleSet) Roles() []Role {
	roles := make([]Role, 0, len(s.roles))
	for role := range s.roles {
		roles = append(roles, role)
	}
	slices.Sort(roles)
	return roles
}

// Names returns the member names ordered by role value. Never nil.
func (s RoleSet) Names() []string {
	roles := s.Roles()
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	return names
}

// Equal reports whether both sets hold the same roles.
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s.roles) != len(other.roles) {
		return false
	}
	for role := range s.roles {
		if !other.Has(role) {
			return false
		}
	}
	return true
}
