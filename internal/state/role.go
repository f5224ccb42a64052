package state

import "strings"

// Role is the canonical authorization tier of a dashboard user.
type Role string

const (
	// RoleNone is returned for unknown or empty role strings.
	RoleNone Role = ""
	// RoleSuperAdmin administers every store.
	RoleSuperAdmin Role = "SUPER_ADMIN"
	// RoleStoreManager manages the store embedded in their account.
	RoleStoreManager Role = "STORE_MANAGER"
	// RoleStaff works in the store embedded in their account.
	RoleStaff Role = "STAFF"
)

var roleAliases = map[string]Role{
	"SUPER_ADMIN":   RoleSuperAdmin,
	"SUPERADMIN":    RoleSuperAdmin,
	"STORE_MANAGER": RoleStoreManager,
	"STOREMANAGER":  RoleStoreManager,
	"STAFF":         RoleStaff,
}

// ResolveRole normalizes a raw backend role string. Matching is case
// insensitive and tolerates "-" or spaces in place of "_".
func ResolveRole(raw string) Role {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if key == "" {
		return RoleNone
	}
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	return roleAliases[key]
}

// Label returns the human readable role name.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleStoreManager:
		return "Store Manager"
	case RoleStaff:
		return "Staff"
	default:
		return ""
	}
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	return r != RoleNone
}
