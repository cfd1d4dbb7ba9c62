package model

import (
	"fmt"
	"strings"
)

// Role is the fixed set of principals a credential can act as. Roles are
// embedded in access tokens and checked by RequireRole.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
	RoleSystem  Role = "system"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleDoctor, RoleNurse, RolePatient, RoleAdmin, RoleSystem}

// ParseRole converts a user-supplied string into a Role. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q (want one of %s)", s, RoleList())
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Privileged reports whether r bypasses per-operation scope checks.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSystem
}

func (r Role) String() string { return string(r) }

// RoleList returns the known roles as a comma-separated string.
func RoleList() string {
	names := make([]string, len(Roles))
	for i, r := range Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
