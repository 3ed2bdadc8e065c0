package rbac

import "slices"

// Denial reasons returned by the policy rules.
const (
	ReasonAssignProtectedRole  = "Only superadmin can assign the admin or Superadmin role"
	ReasonChangeOwnRole        = "You cannot change your own role"
	ReasonModifySuperAdmin     = "Only superadmin can modify a Superadmin account"
	ReasonDeleteSelf           = "You cannot delete your own account"
	ReasonDeleteSuperAdmin     = "Cannot delete this user."
	ReasonModifyProtectedRole  = "Only superadmin can modify the admin or Superadmin role"
	ReasonDeleteSuperAdminRole = "The super-admin role cannot be deleted"
	ReasonDeleteHeldAdminRole  = "The admin role is still assigned to users"
)

// CanAssignRoles decides whether actor may set the roles of targetID from
// current to requested. targetID is zero for a user being created.
func CanAssignRoles(actor Principal, targetID int64, current, requested []Role) Decision {
	if actor.IsSuperAdmin() {
		return Allow()
	}
	for _, r := range requested {
		if r.IsProtected() && !HasRoleNamed(current, r.Name) {
			return Deny(ReasonAssignProtectedRole)
		}
	}
	if targetID != 0 && targetID == actor.UserID && roleSetChanged(current, requested) {
		return Deny(ReasonChangeOwnRole)
	}
	return Allow()
}

// CanModifyUser decides whether actor may edit an account holding targetRoles.
func CanModifyUser(actor Principal, targetRoles []Role) Decision {
	if HasRoleNamed(targetRoles, RoleNameSuperAdmin) && !actor.IsSuperAdmin() {
		return Deny(ReasonModifySuperAdmin)
	}
	return Allow()
}

// CanDeleteUser decides whether actor may delete targetID.
func CanDeleteUser(actor Principal, targetID int64, targetRoles []Role) Decision {
	if targetID == actor.UserID {
		return Deny(ReasonDeleteSelf)
	}
	if HasRoleNamed(targetRoles, RoleNameSuperAdmin) {
		return Deny(ReasonDeleteSuperAdmin)
	}
	return Allow()
}

// CanModifyRole decides whether actor may change role or its permissions.
func CanModifyRole(actor Principal, role Role) Decision {
	if role.IsProtected() && !actor.IsSuperAdmin() {
		return Deny(ReasonModifyProtectedRole)
	}
	return Allow()
}

// CanDeleteRole decides whether actor may delete role while holders users
// still have it. Other roles are detached from their holders on delete.
func CanDeleteRole(actor Principal, role Role, holders int) Decision {
	if role.IsSuperAdmin() {
		return Deny(ReasonDeleteSuperAdminRole)
	}
	if d := CanModifyRole(actor, role); !d.Allowed {
		return d
	}
	if role.Name == RoleNameAdmin && holders > 0 {
		return Deny(ReasonDeleteHeldAdminRole)
	}
	return Allow()
}

func roleSetChanged(current, requested []Role) bool {
	a := uniqueSorted(RoleIDs(current))
	b := uniqueSorted(RoleIDs(requested))
	return !slices.Equal(a, b)
}

func uniqueSorted(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
