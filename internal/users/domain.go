package users

import (
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// User represents a user account for management.
type User struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	IsActive    bool              `json:"is_active"`
	Roles       []rbac.Role       `json:"roles"`
	Permissions []rbac.Permission `json:"permissions"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// HasRole reports whether the user holds the named role in any guard.
func (u User) HasRole(name string) bool {
	return rbac.HasRoleNamed(u.Roles, name)
}

// ListFilters narrows user listings.
type ListFilters struct {
	Search  string
	RoleID  int64
	Page    int
	PerPage int
	// HideSuperAdmin drops users holding the super-admin role.
	HideSuperAdmin bool
}

// UserInput carries create and update fields. Password is optional on update.
type UserInput struct {
	Name          string       `json:"name" validate:"required,max=255"`
	Email         string       `json:"email" validate:"required,email,max=255"`
	Password      string       `json:"password" validate:"omitempty,min=8,max=72"`
	IsActive      *bool        `json:"is_active"`
	GuardName     shared.Guard `json:"guard_name" validate:"omitempty,oneof=web api"`
	RoleIDs       []int64      `json:"role_ids" validate:"required,min=1,dive,gt=0"`
	PermissionIDs []int64      `json:"permission_ids" validate:"omitempty,dive,gt=0"`
}

// userRecord is what the repository writes for a user row.
type userRecord struct {
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
}
