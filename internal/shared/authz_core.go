package shared

// Core platform permissions.
const (
	PermUserView   = "user.view"
	PermUserCreate = "user.create"
	PermUserUpdate = "user.update"
	PermUserDelete = "user.delete"

	PermRoleView   = "role.view"
	PermRoleCreate = "role.create"
	PermRoleUpdate = "role.update"
	PermRoleDelete = "role.delete"

	PermPermissionView   = "permission.view"
	PermPermissionCreate = "permission.create"
	PermPermissionUpdate = "permission.update"
	PermPermissionDelete = "permission.delete"

	PermSettingsView   = "settings.view"
	PermSettingsUpdate = "settings.update"
)

// UserScopes lists the user management permissions.
func UserScopes() []string {
	return []string{PermUserView, PermUserCreate, PermUserUpdate, PermUserDelete}
}

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	scopes := UserScopes()
	return append(scopes,
		PermRoleView,
		PermRoleCreate,
		PermRoleUpdate,
		PermRoleDelete,
		PermPermissionView,
		PermPermissionCreate,
		PermPermissionUpdate,
		PermPermissionDelete,
		PermSettingsView,
		PermSettingsUpdate,
	)
}
