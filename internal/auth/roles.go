package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Role is a single permission atom from the application role catalog.
//
// The integer value is the storage and wire representation inside group_roles.
// Values are grouped in ranges by domain area and are never reused or
// renumbered; new roles are appended at the end of their range.
type Role int16

// RoleNone is the reserved zero value. It is never granted and never stored.
const RoleNone Role = 0

// Device roles (10-19)
const (
	RoleDeviceRead   Role = 10
	RoleDeviceCreate Role = 11
	RoleDeviceUpdate Role = 12
	RoleDeviceDelete Role = 13
)

// Vendor roles (20-29)
const (
	RoleVendorRead   Role = 20
	RoleVendorCreate Role = 21
	RoleVendorUpdate Role = 22
	RoleVendorDelete Role = 23
)

// Category roles (30-39)
const (
	RoleCategoryRead   Role = 30
	RoleCategoryCreate Role = 31
	RoleCategoryUpdate Role = 32
	RoleCategoryDelete Role = 33
)

// Stock roles (40-49)
const (
	RoleStockRead   Role = 40
	RoleStockUpdate Role = 41
)

// Rental roles (50-59)
const (
	RoleRentalRead   Role = 50
	RoleRentalCreate Role = 51
	RoleRentalUpdate Role = 52
)

// Billing roles (60-69)
const (
	RoleBillingRead   Role = 60
	RoleBillingCreate Role = 61
)

// Maintenance roles (70-79)
const (
	RoleMaintenanceRead   Role = 70
	RoleMaintenanceCreate Role = 71
)

// Meta roles (100-109) guard the IAM surface itself.
const (
	RoleRoleRead   Role = 100
	RoleUserRead   Role = 101
	RoleUserCreate Role = 102
	RoleUserDelete Role = 103
)

// Group roles (200-209)
const (
	RoleGroupRead   Role = 200
	RoleGroupCreate Role = 201
	RoleGroupUpdate Role = 202
	RoleGroupDelete Role = 203
)

// ErrUnknownRole is returned when a role name or value is not part of the catalog.
var ErrUnknownRole = errors.New("unknown role")

// roleNames is the exhaustive name table. Names are the wire form of a role.
var roleNames = map[Role]string{
	RoleDeviceRead:        "DeviceRead",
	RoleDeviceCreate:      "DeviceCreate",
	RoleDeviceUpdate:      "DeviceUpdate",
	RoleDeviceDelete:      "DeviceDelete",
	RoleVendorRead:        "VendorRead",
	RoleVendorCreate:      "VendorCreate",
	RoleVendorUpdate:      "VendorUpdate",
	RoleVendorDelete:      "VendorDelete",
	RoleCategoryRead:      "CategoryRead",
	RoleCategoryCreate:    "CategoryCreate",
	RoleCategoryUpdate:    "CategoryUpdate",
	RoleCategoryDelete:    "CategoryDelete",
	RoleStockRead:         "StockRead",
	RoleStockUpdate:       "StockUpdate",
	RoleRentalRead:        "RentalRead",
	RoleRentalCreate:      "RentalCreate",
	RoleRentalUpdate:      "RentalUpdate",
	RoleBillingRead:       "BillingRead",
	RoleBillingCreate:     "BillingCreate",
	RoleMaintenanceRead:   "MaintenanceRead",
	RoleMaintenanceCreate: "MaintenanceCreate",
	RoleRoleRead:          "RoleRead",
	RoleUserRead:          "UserRead",
	RoleUserCreate:        "UserCreate",
	RoleUserDelete:        "UserDelete",
	RoleGroupRead:         "GroupRead",
	RoleGroupCreate:       "GroupCreate",
	RoleGroupUpdate:       "GroupUpdate",
	RoleGroupDelete:       "GroupDelete",
}

var (
	rolesByName map[string]Role
	allRoles    []Role
)

func init() {
	rolesByName = make(map[string]Role, len(roleNames))
	allRoles = make([]Role, 0, len(roleNames))
	for role, name := range roleNames {
		rolesByName[name] = role
		allRoles = append(allRoles, role)
	}
	slices.Sort(allRoles)
}

// RoleInfo is the catalog entry exposed by the roles endpoint.
type RoleInfo struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// AllRoles returns every grantable role in ascending value order.
// RoleNone is never included. The returned slice is a copy.
func AllRoles() []Role {
	return slices.Clone(allRoles)
}

// RoleCatalog returns the (name, value) table for every grantable role.
func RoleCatalog() []RoleInfo {
	catalog := make([]RoleInfo, 0, len(allRoles))
	for _, role := range allRoles {
		catalog = append(catalog, RoleInfo{Name: roleNames[role], Value: int(role)})
	}
	return catalog
}

// ParseRole maps an enum member name to its Role. Matching is exact.
func ParseRole(name string) (Role, error) {
	role, ok := rolesByName[strings.TrimSpace(name)]
	if !ok {
		return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, name)
	}
	return role, nil
}

// RoleFromValue maps a stored integer back to its Role.
func RoleFromValue(value int) (Role, error) {
	role := Role(value)
	if !role.Valid() {
		return RoleNone, fmt.Errorf("%w: %d", ErrUnknownRole, value)
	}
	return role, nil
}

// Valid reports whether r is a grantable catalog role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// String returns the enum member name, or "None"/"Role(n)" for non-catalog values.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	if r == RoleNone {
		return "None"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(roleNames[r]), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}
