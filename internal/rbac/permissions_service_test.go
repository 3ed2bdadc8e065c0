package rbac

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

type mockPermissionsRepository struct {
	perms  map[int64]Permission
	audits []shared.AuditLog
	nextID int64
	err    error
}

func newMockPermissionsRepository(perms ...Permission) *mockPermissionsRepository {
	m := &mockPermissionsRepository{perms: map[int64]Permission{}, nextID: 100}
	for _, p := range perms {
		m.perms[p.ID] = p
	}
	return m
}

func (m *mockPermissionsRepository) ListPermissions(_ context.Context, f PermissionFilters) ([]Permission, int, error) {
	var out []Permission
	for _, p := range m.perms {
		if f.Search == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			out = append(out, p)
		}
	}
	return out, len(out), m.err
}

func (m *mockPermissionsRepository) AllPermissions(_ context.Context, guard shared.Guard) ([]Permission, error) {
	var out []Permission
	for _, p := range m.perms {
		if guard == "" || p.GuardName == guard {
			out = append(out, p)
		}
	}
	return out, m.err
}

func (m *mockPermissionsRepository) GetPermission(_ context.Context, id int64) (Permission, error) {
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, shared.NotFound("permission", id)
	}
	return p, nil
}

func (m *mockPermissionsRepository) WithTx(ctx context.Context, fn func(context.Context, PermissionsTx) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(ctx, m)
}

func (m *mockPermissionsRepository) LockPermission(ctx context.Context, id int64) (Permission, error) {
	return m.GetPermission(ctx, id)
}

func (m *mockPermissionsRepository) CreatePermission(_ context.Context, in PermissionInput) (Permission, error) {
	for _, p := range m.perms {
		if p.Name == in.Name && p.GuardName == in.GuardName {
			return Permission{}, shared.Conflict("name", "exists")
		}
	}
	m.nextID++
	p := Permission{ID: m.nextID, Name: in.Name, GuardName: in.GuardName, Description: in.Description}
	m.perms[p.ID] = p
	return p, nil
}

func (m *mockPermissionsRepository) UpdatePermission(_ context.Context, id int64, in PermissionInput) (Permission, error) {
	p := m.perms[id]
	p.Name = in.Name
	p.Description = in.Description
	m.perms[id] = p
	return p, nil
}

func (m *mockPermissionsRepository) DeletePermission(_ context.Context, id int64) error {
	delete(m.perms, id)
	return nil
}

func (m *mockPermissionsRepository) RecordAudit(_ context.Context, log shared.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func TestPermissionsServiceCreate(t *testing.T) {
	repo := newMockPermissionsRepository()
	svc := NewPermissionsService(repo)
	actor := superActor(1)

	perm, err := svc.Create(context.Background(), actor, PermissionInput{Name: " report.export ", Description: "Export reports"})
	require.NoError(t, err)
	assert.Equal(t, "report.export", perm.Name)
	assert.Equal(t, shared.GuardWeb, perm.GuardName)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, shared.AuditCreate, repo.audits[0].Action)

	_, err = svc.Create(context.Background(), actor, PermissionInput{Name: "report.export"})
	assert.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Create(context.Background(), actor, PermissionInput{Name: "report.export", GuardName: shared.GuardAPI})
	assert.NoError(t, err)

	_, err = svc.Create(context.Background(), actor, PermissionInput{Name: "has spaces"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), actor, PermissionInput{Name: "x", GuardName: "cli"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPermissionsServiceProtectsRegistry(t *testing.T) {
	repo := newMockPermissionsRepository(
		Permission{ID: 1, Name: "user.view", GuardName: shared.GuardWeb},
		Permission{ID: 2, Name: "report.export", GuardName: shared.GuardWeb},
	)
	svc := NewPermissionsService(repo)
	ctx := context.Background()
	actor := superActor(1)

	_, err := svc.Update(ctx, actor, 1, PermissionInput{Name: "user.list"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	updated, err := svc.Update(ctx, actor, 1, PermissionInput{Name: "user.view", Description: "See users"})
	require.NoError(t, err)
	assert.Equal(t, "See users", updated.Description)

	_, err = svc.Update(ctx, actor, 2, PermissionInput{Name: "report.export", GuardName: shared.GuardAPI})
	assert.ErrorIs(t, err, shared.ErrValidation)

	err = svc.Delete(ctx, actor, 1)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Contains(t, repo.perms, int64(1))

	require.NoError(t, svc.Delete(ctx, actor, 2))
	assert.NotContains(t, repo.perms, int64(2))

	assert.ErrorIs(t, svc.Delete(ctx, actor, 99), shared.ErrNotFound)
}

func TestGroupPermissions(t *testing.T) {
	groups := GroupPermissions([]Permission{
		{Name: "user.view"},
		{Name: "role_create"},
		{Name: "user.create"},
		{Name: "audit-log.view"},
		{Name: "settings"},
	})
	require.Len(t, groups, 4)
	assert.Equal(t, "audit-log", groups[0].Key)
	assert.Equal(t, "Audit Log", groups[0].Label)
	assert.Equal(t, "role", groups[1].Key)
	assert.Equal(t, "settings", groups[2].Key)
	assert.Equal(t, "user", groups[3].Key)
	assert.Len(t, groups[3].Permissions, 2)
}

func TestPermissionsServiceListPagination(t *testing.T) {
	repo := newMockPermissionsRepository(
		Permission{ID: 1, Name: "user.view", GuardName: shared.GuardWeb},
		Permission{ID: 2, Name: "user.create", GuardName: shared.GuardWeb},
		Permission{ID: 3, Name: "role.view", GuardName: shared.GuardWeb},
	)
	svc := NewPermissionsService(repo)

	perms, page, err := svc.List(context.Background(), PermissionFilters{Search: "USER", Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Len(t, perms, 2)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)

	_, _, err = svc.List(context.Background(), PermissionFilters{Guard: "cli"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
