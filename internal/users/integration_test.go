//go:build integration

package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
	"github.com/odyssey-erp/odyssey-admin/internal/testing/pgtest"
	"github.com/odyssey-erp/odyssey-admin/internal/users"
)

func TestUsersOnPostgres(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()
	_, err := rbac.NewService(rbac.NewPGRepository(pool)).EnsureRegistry(ctx)
	require.NoError(t, err)

	var userRoleID, superRoleID int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = 'user' AND guard_name = 'web'`).Scan(&userRoleID))
	require.NoError(t, pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = 'super-admin' AND guard_name = 'web'`).Scan(&superRoleID))

	rootID := pgtest.InsertUser(t, pool, "Root", "root@example.com")
	_, err = rbac.SyncRoles(ctx, rbac.NewPGStore(pool), rootID, shared.GuardWeb, []int64{superRoleID})
	require.NoError(t, err)

	super := rbac.Principal{
		UserID:      rootID,
		Guard:       shared.GuardWeb,
		Roles:       []string{rbac.RoleNameSuperAdmin},
		Permissions: rbac.NewPermissionSet(shared.CoreScopes()...),
	}
	svc := users.NewService(users.NewRepository(pool))

	for _, in := range []users.UserInput{
		{Name: "Ada Lovelace", Email: "ADA@example.com", Password: "password1", RoleIDs: []int64{userRoleID}},
		{Name: "Alan Turing", Email: "alan@example.com", Password: "password1", RoleIDs: []int64{userRoleID}},
	} {
		_, err := svc.CreateUser(ctx, super, in)
		require.NoError(t, err)
	}

	_, err = svc.CreateUser(ctx, super, users.UserInput{Name: "Dup", Email: "ada@example.com", Password: "password1", RoleIDs: []int64{userRoleID}})
	require.ErrorIs(t, err, shared.ErrConflict)

	list, page, err := svc.ListUsers(ctx, super, users.ListFilters{Search: "ADA", Page: 1, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ada@example.com", list[0].Email)
	assert.Equal(t, 1, page.Total)
	require.Len(t, list[0].Roles, 1)
	assert.Equal(t, rbac.RoleNameUser, list[0].Roles[0].Name)

	admin := rbac.Principal{
		UserID:      list[0].ID,
		Guard:       shared.GuardWeb,
		Roles:       []string{rbac.RoleNameAdmin},
		Permissions: rbac.NewPermissionSet(shared.UserScopes()...),
	}
	visible, _, err := svc.ListUsers(ctx, admin, users.ListFilters{Page: 1, PerPage: 10})
	require.NoError(t, err)
	for _, u := range visible {
		assert.NotEqual(t, rootID, u.ID, "super-admin accounts are hidden from other actors")
	}
	assert.Len(t, visible, 2)

	require.NoError(t, svc.DeleteUser(ctx, super, list[0].ID))
	var holders int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM model_has_roles WHERE model_id = $1`, list[0].ID).Scan(&holders))
	assert.Zero(t, holders)
}

func TestConcurrentUpdatesOfSameUser(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()
	_, err := rbac.NewService(rbac.NewPGRepository(pool)).EnsureRegistry(ctx)
	require.NoError(t, err)

	var userRoleID int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = 'user' AND guard_name = 'web'`).Scan(&userRoleID))

	rootID := pgtest.InsertUser(t, pool, "Root", "root@example.com")
	super := rbac.Principal{
		UserID:      rootID,
		Guard:       shared.GuardWeb,
		Roles:       []string{rbac.RoleNameSuperAdmin},
		Permissions: rbac.NewPermissionSet(shared.CoreScopes()...),
	}
	svc := users.NewService(users.NewRepository(pool))

	target, err := svc.CreateUser(ctx, super, users.UserInput{Name: "Grace", Email: "grace@example.com", Password: "password1", RoleIDs: []int64{userRoleID}})
	require.NoError(t, err)

	names := []string{"Grace Hopper", "Grace Murray"}
	for round := 0; round < 5; round++ {
		var g errgroup.Group
		for _, name := range names {
			g.Go(func() error {
				_, err := svc.UpdateUser(ctx, super, target.ID, users.UserInput{Name: name, Email: "grace@example.com", RoleIDs: []int64{userRoleID}})
				return err
			})
		}
		require.NoError(t, g.Wait())
	}

	got, err := svc.GetUser(ctx, super, target.ID)
	require.NoError(t, err)
	assert.Contains(t, names, got.Name)
	require.Len(t, got.Roles, 1)
}
