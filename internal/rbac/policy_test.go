package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

var (
	roleSuper  = Role{ID: 3, Name: RoleNameSuperAdmin, GuardName: shared.GuardWeb}
	roleAdmin  = Role{ID: 2, Name: RoleNameAdmin, GuardName: shared.GuardWeb}
	roleUser   = Role{ID: 1, Name: RoleNameUser, GuardName: shared.GuardWeb}
	roleEditor = Role{ID: 4, Name: "editor", GuardName: shared.GuardWeb}
)

func adminActor(id int64) Principal {
	return Principal{UserID: id, Guard: shared.GuardWeb, Roles: []string{RoleNameAdmin}, Permissions: NewPermissionSet(shared.UserScopes()...)}
}

func superActor(id int64) Principal {
	return Principal{UserID: id, Guard: shared.GuardWeb, Roles: []string{RoleNameSuperAdmin}, Permissions: NewPermissionSet(shared.CoreScopes()...)}
}

func TestAdminCannotGrantSuperAdmin(t *testing.T) {
	d := CanAssignRoles(adminActor(1), 9, []Role{roleUser}, []Role{roleSuper})
	assert.False(t, d.Allowed)
	assert.Equal(t, "Only superadmin can assign the admin or Superadmin role", d.Reason)

	d = CanAssignRoles(adminActor(1), 0, nil, []Role{roleAdmin})
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonAssignProtectedRole, d.Reason)
}

func TestAdminMayKeepExistingProtectedRole(t *testing.T) {
	d := CanAssignRoles(adminActor(1), 9, []Role{roleAdmin}, []Role{roleAdmin, roleEditor})
	assert.True(t, d.Allowed)
}

func TestSuperAdminAssignsAnything(t *testing.T) {
	assert.True(t, CanAssignRoles(superActor(1), 9, nil, []Role{roleSuper, roleAdmin}).Allowed)
	assert.True(t, CanAssignRoles(superActor(1), 1, []Role{roleSuper}, []Role{roleSuper, roleEditor}).Allowed)
}

func TestCannotChangeOwnRole(t *testing.T) {
	actor := adminActor(7)
	d := CanAssignRoles(actor, 7, []Role{roleAdmin}, []Role{roleAdmin, roleEditor})
	assert.False(t, d.Allowed)
	assert.Equal(t, "You cannot change your own role", d.Reason)

	// Same set in a different order is not a change.
	assert.True(t, CanAssignRoles(Principal{UserID: 7, Roles: []string{"editor"}}, 7,
		[]Role{roleEditor, roleUser}, []Role{roleUser, roleEditor}).Allowed)
}

func TestDeleteUserRules(t *testing.T) {
	d := CanDeleteUser(superActor(1), 1, []Role{roleSuper})
	assert.False(t, d.Allowed)
	assert.Equal(t, "You cannot delete your own account", d.Reason)

	d = CanDeleteUser(superActor(1), 2, []Role{roleSuper})
	assert.False(t, d.Allowed)
	assert.Equal(t, "Cannot delete this user.", d.Reason)

	assert.True(t, CanDeleteUser(adminActor(1), 2, []Role{roleUser}).Allowed)
}

func TestModifyUserRules(t *testing.T) {
	assert.False(t, CanModifyUser(adminActor(1), []Role{roleSuper}).Allowed)
	assert.True(t, CanModifyUser(superActor(1), []Role{roleSuper}).Allowed)
	assert.True(t, CanModifyUser(adminActor(1), []Role{roleEditor}).Allowed)
}

func TestRoleDeletionPolicy(t *testing.T) {
	d := CanDeleteRole(superActor(1), roleSuper, 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDeleteSuperAdminRole, d.Reason)

	d = CanDeleteRole(superActor(1), roleAdmin, 2)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDeleteHeldAdminRole, d.Reason)

	assert.True(t, CanDeleteRole(superActor(1), roleAdmin, 0).Allowed)
	assert.False(t, CanDeleteRole(adminActor(1), roleAdmin, 0).Allowed)
	assert.True(t, CanDeleteRole(adminActor(1), roleEditor, 5).Allowed)
}
