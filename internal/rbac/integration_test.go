//go:build integration

package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
	"github.com/odyssey-erp/odyssey-admin/internal/testing/pgtest"
)

func TestRegistryAndAssignmentsOnPostgres(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()
	svc := rbac.NewService(rbac.NewPGRepository(pool))

	first, err := svc.EnsureRegistry(ctx)
	require.NoError(t, err)
	var permCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions`).Scan(&permCount))
	assert.Equal(t, first.Permissions, permCount)

	_, err = svc.EnsureRegistry(ctx)
	require.NoError(t, err)
	var again int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions`).Scan(&again))
	assert.Equal(t, permCount, again, "registry bootstrap is idempotent")

	userID := pgtest.InsertUser(t, pool, "Root", "root@example.com")
	var superID, adminID int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1 AND guard_name = 'web'`, rbac.RoleNameSuperAdmin).Scan(&superID))
	require.NoError(t, pool.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1 AND guard_name = 'web'`, rbac.RoleNameAdmin).Scan(&adminID))

	store := rbac.NewPGStore(pool)
	res, err := rbac.SyncRoles(ctx, store, userID, shared.GuardWeb, []int64{superID, adminID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{superID, adminID}, res.Attached)

	res, err = rbac.SyncRoles(ctx, store, userID, shared.GuardWeb, []int64{superID})
	require.NoError(t, err)
	assert.Equal(t, []int64{adminID}, res.Detached)

	web, err := svc.ResolvePrincipal(ctx, userID, shared.GuardWeb)
	require.NoError(t, err)
	assert.True(t, web.IsSuperAdmin())
	for _, perm := range shared.CoreScopes() {
		assert.True(t, web.Can(perm), perm)
	}

	api, err := svc.ResolvePrincipal(ctx, userID, shared.GuardAPI)
	require.NoError(t, err)
	assert.Empty(t, api.Roles)
	assert.False(t, api.Can(shared.PermUserView))

	_, err = pool.Exec(ctx, `UPDATE users SET is_active = FALSE WHERE id = $1`, userID)
	require.NoError(t, err)
	_, err = svc.ResolvePrincipal(ctx, userID, shared.GuardWeb)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
