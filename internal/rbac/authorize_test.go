package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

func TestAuthorize(t *testing.T) {
	p := Principal{UserID: 1, Permissions: NewPermissionSet("user.view", "user.create")}

	assert.True(t, Authorize(p, MatchAny, "user.delete", "user.view").Allowed)
	assert.False(t, Authorize(p, MatchAll, "user.delete", "user.view").Allowed)
	assert.True(t, Authorize(p, MatchAll, "user.create", "user.view").Allowed)
	assert.True(t, Authorize(p, MatchAll).Allowed)
	assert.True(t, Authorize(Principal{}, MatchAny).Allowed)

	denied := Authorize(p, MatchAny, "role.delete")
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonUnauthorized, denied.Reason)
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, Allow().Err())

	err := Deny("You cannot delete your own account").Err()
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
	assert.EqualError(t, err, "You cannot delete your own account")

	assert.EqualError(t, Decision{}.Err(), ReasonUnauthorized)
}
