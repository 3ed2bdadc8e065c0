//go:build integration

package roles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/roles"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
	"github.com/odyssey-erp/odyssey-admin/internal/testing/pgtest"
)

func TestRolesOnPostgres(t *testing.T) {
	pool := pgtest.NewPool(t)
	ctx := context.Background()
	_, err := rbac.NewService(rbac.NewPGRepository(pool)).EnsureRegistry(ctx)
	require.NoError(t, err)

	var viewID int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT id FROM permissions WHERE name = $1 AND guard_name = 'web'`, shared.PermUserView).Scan(&viewID))

	actor := rbac.Principal{
		UserID:      1,
		Guard:       shared.GuardWeb,
		Roles:       []string{rbac.RoleNameSuperAdmin},
		Permissions: rbac.NewPermissionSet(shared.CoreScopes()...),
	}
	svc := roles.NewService(roles.NewRepository(pool))

	editor, err := svc.CreateRole(ctx, actor, roles.RoleInput{Name: "editor", PermissionIDs: []int64{viewID}})
	require.NoError(t, err)
	assert.Equal(t, shared.GuardWeb, editor.GuardName)

	_, err = svc.CreateRole(ctx, actor, roles.RoleInput{Name: "editor"})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateRole(ctx, actor, roles.RoleInput{Name: "editor", GuardName: shared.GuardAPI})
	require.NoError(t, err, "names are unique per guard")

	var granted int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_has_permissions WHERE role_id = $1`, editor.ID).Scan(&granted))
	assert.Equal(t, 1, granted)

	require.NoError(t, svc.DeleteRole(ctx, actor, editor.ID))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_has_permissions WHERE role_id = $1`, editor.ID).Scan(&granted))
	assert.Zero(t, granted)
}
