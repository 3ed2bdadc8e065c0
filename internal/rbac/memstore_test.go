package rbac

import (
	"context"
	"slices"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// memStore is an in-memory AssignmentStore, PrincipalStore and RegistryStore.
type memStore struct {
	users       map[int64]bool
	inactive    map[int64]bool
	roles       map[int64]Role
	permissions map[int64]Permission
	userRoles   map[int64][]int64
	userPerms   map[int64][]int64
	rolePerms   map[int64][]int64
	nextID      int64
	writes      int
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]bool{},
		inactive:    map[int64]bool{},
		roles:       map[int64]Role{},
		permissions: map[int64]Permission{},
		userRoles:   map[int64][]int64{},
		userPerms:   map[int64][]int64{},
		rolePerms:   map[int64][]int64{},
		nextID:      100,
	}
}

func (m *memStore) addRole(id int64, name string, guard shared.Guard) Role {
	r := Role{ID: id, Name: name, GuardName: guard}
	m.roles[id] = r
	return r
}

func (m *memStore) addPermission(id int64, name string, guard shared.Guard) Permission {
	p := Permission{ID: id, Name: name, GuardName: guard}
	m.permissions[id] = p
	return p
}

func (m *memStore) LockUser(_ context.Context, userID int64) error {
	if !m.users[userID] {
		return shared.NotFound("user", userID)
	}
	return nil
}

func (m *memStore) LockRole(_ context.Context, roleID int64) (Role, error) {
	r, ok := m.roles[roleID]
	if !ok {
		return Role{}, shared.NotFound("role", roleID)
	}
	return r, nil
}

func (m *memStore) RolesByIDs(_ context.Context, ids []int64) ([]Role, error) {
	var out []Role
	for _, id := range ids {
		if r, ok := m.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) PermissionsByIDs(_ context.Context, ids []int64) ([]Permission, error) {
	var out []Permission
	for _, id := range ids {
		if p, ok := m.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UserRoleIDs(_ context.Context, userID int64, guard shared.Guard) ([]int64, error) {
	var out []int64
	for _, id := range m.userRoles[userID] {
		if m.roles[id].GuardName == guard {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) UserPermissionIDs(_ context.Context, userID int64, guard shared.Guard) ([]int64, error) {
	var out []int64
	for _, id := range m.userPerms[userID] {
		if m.permissions[id].GuardName == guard {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) RolePermissionIDs(_ context.Context, roleID int64) ([]int64, error) {
	return slices.Clone(m.rolePerms[roleID]), nil
}

func (m *memStore) AttachUserRoles(_ context.Context, userID int64, ids []int64) error {
	m.writes++
	m.userRoles[userID] = attach(m.userRoles[userID], ids)
	return nil
}

func (m *memStore) DetachUserRoles(_ context.Context, userID int64, ids []int64) error {
	m.writes++
	m.userRoles[userID] = detach(m.userRoles[userID], ids)
	return nil
}

func (m *memStore) AttachUserPermissions(_ context.Context, userID int64, ids []int64) error {
	m.writes++
	m.userPerms[userID] = attach(m.userPerms[userID], ids)
	return nil
}

func (m *memStore) DetachUserPermissions(_ context.Context, userID int64, ids []int64) error {
	m.writes++
	m.userPerms[userID] = detach(m.userPerms[userID], ids)
	return nil
}

func (m *memStore) AttachRolePermissions(_ context.Context, roleID int64, ids []int64) error {
	m.writes++
	m.rolePerms[roleID] = attach(m.rolePerms[roleID], ids)
	return nil
}

func (m *memStore) DetachRolePermissions(_ context.Context, roleID int64, ids []int64) error {
	m.writes++
	m.rolePerms[roleID] = detach(m.rolePerms[roleID], ids)
	return nil
}

func (m *memStore) UserRoles(_ context.Context, userID int64, guard shared.Guard) ([]Role, error) {
	var out []Role
	for _, id := range m.userRoles[userID] {
		r := m.roles[id]
		if r.GuardName != guard {
			continue
		}
		r.Permissions = nil
		for _, pid := range m.rolePerms[id] {
			r.Permissions = append(r.Permissions, m.permissions[pid])
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) UserActive(_ context.Context, userID int64) (bool, error) {
	return m.users[userID] && !m.inactive[userID], nil
}

func (m *memStore) UserDirectPermissions(_ context.Context, userID int64, guard shared.Guard) ([]Permission, error) {
	var out []Permission
	for _, id := range m.userPerms[userID] {
		if p := m.permissions[id]; p.GuardName == guard {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpsertPermission(_ context.Context, name string, guard shared.Guard, description string) (Permission, bool, error) {
	for _, p := range m.permissions {
		if p.Name == name && p.GuardName == guard {
			return p, false, nil
		}
	}
	m.nextID++
	p := Permission{ID: m.nextID, Name: name, GuardName: guard, Description: description}
	m.permissions[p.ID] = p
	return p, true, nil
}

func (m *memStore) UpsertRole(_ context.Context, name string, guard shared.Guard) (Role, bool, error) {
	for _, r := range m.roles {
		if r.Name == name && r.GuardName == guard {
			return r, false, nil
		}
	}
	m.nextID++
	return m.addRole(m.nextID, name, guard), true, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, m)
}

func (m *memStore) permissionID(name string, guard shared.Guard) int64 {
	for _, p := range m.permissions {
		if p.Name == name && p.GuardName == guard {
			return p.ID
		}
	}
	return 0
}

func (m *memStore) roleID(name string, guard shared.Guard) int64 {
	for _, r := range m.roles {
		if r.Name == name && r.GuardName == guard {
			return r.ID
		}
	}
	return 0
}

func attach(ids, add []int64) []int64 {
	for _, id := range add {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func detach(ids, remove []int64) []int64 {
	return slices.DeleteFunc(slices.Clone(ids), func(id int64) bool {
		return slices.Contains(remove, id)
	})
}
