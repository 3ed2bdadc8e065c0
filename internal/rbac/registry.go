package rbac

import (
	"slices"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// RegistryEntry is a permission the application checks in code.
type RegistryEntry struct {
	Name        string
	Description string
}

var registry = []RegistryEntry{
	{shared.PermUserView, "List and view user accounts"},
	{shared.PermUserCreate, "Create user accounts"},
	{shared.PermUserUpdate, "Edit user accounts and their assignments"},
	{shared.PermUserDelete, "Delete user accounts"},
	{shared.PermRoleView, "List and view roles"},
	{shared.PermRoleCreate, "Create roles"},
	{shared.PermRoleUpdate, "Edit roles and their permissions"},
	{shared.PermRoleDelete, "Delete roles"},
	{shared.PermPermissionView, "List and view permissions"},
	{shared.PermPermissionCreate, "Create permissions"},
	{shared.PermPermissionUpdate, "Edit permissions"},
	{shared.PermPermissionDelete, "Delete permissions"},
	{shared.PermSettingsView, "View application settings"},
	{shared.PermSettingsUpdate, "Change application settings"},
}

// RegistryGuards are the guards the registry is provisioned for.
var RegistryGuards = []shared.Guard{shared.GuardWeb, shared.GuardAPI}

// Registry returns the permissions the application checks.
func Registry() []RegistryEntry {
	return slices.Clone(registry)
}

// IsRegistered reports whether name is a registry permission.
func IsRegistered(name string) bool {
	name = normalizePermission(name)
	for _, e := range registry {
		if e.Name == name {
			return true
		}
	}
	return false
}

// SeedPermissions returns the registry permissions a system role starts with.
func SeedPermissions(role SystemRole) []string {
	switch role {
	case RoleSuperAdmin:
		names := make([]string, 0, len(registry))
		for _, e := range registry {
			names = append(names, e.Name)
		}
		return names
	case RoleAdmin:
		return shared.UserScopes()
	case RoleUser:
		return []string{shared.PermUserView}
	default:
		return nil
	}
}
