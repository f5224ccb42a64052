package users

import (
	"strings"

	"github.com/fixline-ai/fixline/internal/state"
)

// Member is a store account shaped for the user list.
type Member struct {
	ID         int64
	Name       string
	Email      string
	Role       state.Role
	RoleLabel  string
	LastActive string
	Initials   string
	Image      string
}

// NewMember is the add user form.
type NewMember struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Role     string `validate:"required"`
	Password string `validate:"required,min=6"`
}

// SplitName splits a full name into first and last names. A single word name
// gets the last name "User".
func SplitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], "User"
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// AssignableRoles lists the roles actor may grant.
func AssignableRoles(actor state.Role) []state.Role {
	switch actor {
	case state.RoleSuperAdmin:
		return []state.Role{state.RoleStaff, state.RoleStoreManager, state.RoleSuperAdmin}
	case state.RoleStoreManager:
		return []state.Role{state.RoleStaff, state.RoleStoreManager}
	}
	return nil
}

func canAssign(actor, role state.Role) bool {
	for _, r := range AssignableRoles(actor) {
		if r == role {
			return true
		}
	}
	return false
}
