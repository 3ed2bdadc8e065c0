package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	wrapped := fmt.Errorf("users: delete: %w", Forbidden("You cannot delete your own account"))
	assert.ErrorIs(t, wrapped, ErrForbidden)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, "You cannot delete your own account", UserSafeMessage(wrapped))

	notFound := NotFound("role", int64(7))
	assert.ErrorIs(t, notFound, ErrNotFound)
	assert.Equal(t, "role 7 not found", notFound.Error())

	conflict := Conflict("name", "role name already exists for guard web")
	assert.ErrorIs(t, conflict, ErrConflict)
}

func TestValidationErrorMessageIsStable(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"password": "too short", "email": "required"}}
	assert.Equal(t, "validation failed: email: required; password: too short", err.Error())
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUserSafeMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "Something went wrong, please try again", UserSafeMessage(errors.New("pq: connection reset")))
	assert.Equal(t, "Invalid email or password", UserSafeMessage(ErrInvalidCredentials))
	assert.Empty(t, UserSafeMessage(nil))
}
