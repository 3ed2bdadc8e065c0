package roles

import "github.com/odyssey-erp/odyssey-admin/internal/shared"

// RoleListFilters narrows role listings.
type RoleListFilters struct {
	Search  string
	Guard   shared.Guard
	Page    int
	PerPage int
	// HideSuperAdmin drops the super-admin role from the result.
	HideSuperAdmin bool
}

// RoleInput carries create and update fields. A nil PermissionIDs leaves the
// role's permissions untouched; an empty slice clears them.
type RoleInput struct {
	Name          string       `json:"name" validate:"required,max=255"`
	GuardName     shared.Guard `json:"guard_name" validate:"omitempty,oneof=web api"`
	PermissionIDs []int64      `json:"permission_ids" validate:"omitempty,dive,gt=0"`
}
