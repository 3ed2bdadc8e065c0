package rbac

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// AssignmentStore is the persistence surface of the assignment engine. The
// PostgreSQL implementation must be used inside a transaction.
type AssignmentStore interface {
	// LockUser locks the user row for the rest of the transaction.
	LockUser(ctx context.Context, userID int64) error
	// LockRole locks the role row and returns it.
	LockRole(ctx context.Context, roleID int64) (Role, error)

	RolesByIDs(ctx context.Context, ids []int64) ([]Role, error)
	PermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error)

	UserRoleIDs(ctx context.Context, userID int64, guard shared.Guard) ([]int64, error)
	UserPermissionIDs(ctx context.Context, userID int64, guard shared.Guard) ([]int64, error)
	RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)

	AttachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	DetachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
	AttachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error
	DetachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error
	AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// SyncResult reports the ids written by a sync. Both are nil when nothing changed.
type SyncResult struct {
	Attached []int64
	Detached []int64
}

// Changed reports whether the sync wrote anything.
func (r SyncResult) Changed() bool {
	return len(r.Attached) > 0 || len(r.Detached) > 0
}

// SyncRoles replaces the user's roles within guard by roleIDs.
func SyncRoles(ctx context.Context, store AssignmentStore, userID int64, guard shared.Guard, roleIDs []int64) (SyncResult, error) {
	if err := store.LockUser(ctx, userID); err != nil {
		return SyncResult{}, err
	}
	desired := uniqueSorted(roleIDs)
	roles, err := store.RolesByIDs(ctx, desired)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load roles: %w", err)
	}
	if err := checkRoles(desired, roles, guard); err != nil {
		return SyncResult{}, err
	}
	current, err := store.UserRoleIDs(ctx, userID, guard)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load user roles: %w", err)
	}
	res := diff(current, desired)
	if len(res.Attached) > 0 {
		if err := store.AttachUserRoles(ctx, userID, res.Attached); err != nil {
			return SyncResult{}, fmt.Errorf("attach roles: %w", err)
		}
	}
	if len(res.Detached) > 0 {
		if err := store.DetachUserRoles(ctx, userID, res.Detached); err != nil {
			return SyncResult{}, fmt.Errorf("detach roles: %w", err)
		}
	}
	return res, nil
}

// SyncPermissions replaces the user's direct permissions within guard.
func SyncPermissions(ctx context.Context, store AssignmentStore, userID int64, guard shared.Guard, permissionIDs []int64) (SyncResult, error) {
	if err := store.LockUser(ctx, userID); err != nil {
		return SyncResult{}, err
	}
	desired := uniqueSorted(permissionIDs)
	perms, err := store.PermissionsByIDs(ctx, desired)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load permissions: %w", err)
	}
	if err := checkPermissions(desired, perms, guard); err != nil {
		return SyncResult{}, err
	}
	current, err := store.UserPermissionIDs(ctx, userID, guard)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load user permissions: %w", err)
	}
	res := diff(current, desired)
	if len(res.Attached) > 0 {
		if err := store.AttachUserPermissions(ctx, userID, res.Attached); err != nil {
			return SyncResult{}, fmt.Errorf("attach permissions: %w", err)
		}
	}
	if len(res.Detached) > 0 {
		if err := store.DetachUserPermissions(ctx, userID, res.Detached); err != nil {
			return SyncResult{}, fmt.Errorf("detach permissions: %w", err)
		}
	}
	return res, nil
}

// SyncRolePermissions replaces the permissions granted by a role. The role
// must belong to guard and so must every permission.
func SyncRolePermissions(ctx context.Context, store AssignmentStore, roleID int64, guard shared.Guard, permissionIDs []int64) (SyncResult, error) {
	role, err := store.LockRole(ctx, roleID)
	if err != nil {
		return SyncResult{}, err
	}
	if role.GuardName != guard {
		return SyncResult{}, shared.NewValidationError("guard_name",
			fmt.Sprintf("role %q belongs to guard %s", role.Name, role.GuardName))
	}
	desired := uniqueSorted(permissionIDs)
	perms, err := store.PermissionsByIDs(ctx, desired)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load permissions: %w", err)
	}
	if err := checkPermissions(desired, perms, guard); err != nil {
		return SyncResult{}, err
	}
	current, err := store.RolePermissionIDs(ctx, roleID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("load role permissions: %w", err)
	}
	res := diff(current, desired)
	if len(res.Attached) > 0 {
		if err := store.AttachRolePermissions(ctx, roleID, res.Attached); err != nil {
			return SyncResult{}, fmt.Errorf("attach role permissions: %w", err)
		}
	}
	if len(res.Detached) > 0 {
		if err := store.DetachRolePermissions(ctx, roleID, res.Detached); err != nil {
			return SyncResult{}, fmt.Errorf("detach role permissions: %w", err)
		}
	}
	return res, nil
}

func checkRoles(ids []int64, roles []Role, guard shared.Guard) error {
	byID := make(map[int64]Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return shared.NotFound("role", id)
		}
		if r.GuardName != guard {
			return shared.NewValidationError("role_ids",
				fmt.Sprintf("role %q belongs to guard %s, not %s", r.Name, r.GuardName, guard))
		}
	}
	return nil
}

func checkPermissions(ids []int64, perms []Permission, guard shared.Guard) error {
	byID := make(map[int64]Permission, len(perms))
	for _, p := range perms {
		byID[p.ID] = p
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return shared.NotFound("permission", id)
		}
		if p.GuardName != guard {
			return shared.NewValidationError("permission_ids",
				fmt.Sprintf("permission %q belongs to guard %s, not %s", p.Name, p.GuardName, guard))
		}
	}
	return nil
}

// diff computes attach = desired - current and detach = current - desired.
// desired must already be sorted and unique.
func diff(current, desired []int64) SyncResult {
	var res SyncResult
	have := make(map[int64]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}
	want := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
		if _, ok := have[id]; !ok {
			res.Attached = append(res.Attached, id)
		}
	}
	for _, id := range uniqueSorted(current) {
		if _, ok := want[id]; !ok {
			res.Detached = append(res.Detached, id)
		}
	}
	return res
}
