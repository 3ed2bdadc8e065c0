package rbac

import (
	"slices"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// SystemRole enumerates the roles the application itself relies on.
type SystemRole int

const (
	RoleUser SystemRole = iota + 1
	RoleAdmin
	RoleSuperAdmin
)

// Canonical system role names.
const (
	RoleNameUser       = "user"
	RoleNameAdmin      = "admin"
	RoleNameSuperAdmin = "super-admin"
)

// String returns the canonical role name.
func (r SystemRole) String() string {
	switch r {
	case RoleUser:
		return RoleNameUser
	case RoleAdmin:
		return RoleNameAdmin
	case RoleSuperAdmin:
		return RoleNameSuperAdmin
	default:
		return ""
	}
}

// Protected reports whether only a super-admin may hand out or change the role.
func (r SystemRole) Protected() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// SystemRoles lists every system role, least privileged first.
func SystemRoles() []SystemRole {
	return []SystemRole{RoleUser, RoleAdmin, RoleSuperAdmin}
}

// ParseSystemRole maps a role name to its SystemRole.
func ParseSystemRole(name string) (SystemRole, bool) {
	switch name {
	case RoleNameUser:
		return RoleUser, true
	case RoleNameAdmin:
		return RoleAdmin, true
	case RoleNameSuperAdmin:
		return RoleSuperAdmin, true
	default:
		return 0, false
	}
}

// Role represents a named bundle of permissions within a guard.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	GuardName   shared.Guard `json:"guard_name"`
	Permissions []Permission `json:"permissions"`
	UsersCount  int          `json:"users_count"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// System returns the SystemRole behind r, if any.
func (r Role) System() (SystemRole, bool) {
	return ParseSystemRole(r.Name)
}

// IsProtected reports whether r is the admin or super-admin role.
func (r Role) IsProtected() bool {
	sys, ok := r.System()
	return ok && sys.Protected()
}

// IsSuperAdmin reports whether r is the super-admin role.
func (r Role) IsSuperAdmin() bool {
	return r.Name == RoleNameSuperAdmin
}

// PermissionNames returns the sorted names of the role's permissions.
func (r Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return names
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	GuardName   shared.Guard `json:"guard_name"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Group returns the permission's group prefix.
func (p Permission) Group() string {
	return GroupOf(p.Name)
}

// GroupOf returns the text before the first '.' or '_' of name. A name
// without a delimiter is its own group.
func GroupOf(name string) string {
	if i := strings.IndexAny(name, "._"); i > 0 {
		return name[:i]
	}
	return name
}

// HasRoleNamed reports whether roles contains a role called name.
func HasRoleNamed(roles []Role, name string) bool {
	for _, r := range roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RoleIDs extracts the identifiers of roles.
func RoleIDs(roles []Role) []int64 {
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// PermissionSet is the capability set of a principal.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set.Add(n)
	}
	return set
}

// Add inserts name into the set.
func (s PermissionSet) Add(name string) {
	name = normalizePermission(name)
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

// Has reports whether the set holds name.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[normalizePermission(name)]
	return ok
}

// HasAny reports whether at least one of names is held. An empty list is satisfied.
func (s PermissionSet) HasAny(names ...string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of names is held.
func (s PermissionSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// Union returns a new set with the members of s and other.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Names returns the members in sorted order.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func normalizePermission(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EffectivePermissions is the union of every role's permissions and the
// direct permissions.
func EffectivePermissions(roles []Role, direct []Permission) PermissionSet {
	set := make(PermissionSet)
	for _, r := range roles {
		for _, p := range r.Permissions {
			set.Add(p.Name)
		}
	}
	for _, p := range direct {
		set.Add(p.Name)
	}
	return set
}

// Principal describes the authenticated actor within one guard.
type Principal struct {
	UserID      int64         `json:"id"`
	Guard       shared.Guard  `json:"guard"`
	Roles       []string      `json:"roles"`
	Permissions PermissionSet `json:"-"`
}

// NewPrincipal assembles a Principal from loaded roles and direct permissions.
func NewPrincipal(userID int64, guard shared.Guard, roles []Role, direct []Permission) Principal {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	slices.Sort(names)
	return Principal{
		UserID:      userID,
		Guard:       guard,
		Roles:       names,
		Permissions: EffectivePermissions(roles, direct),
	}
}

// HasRole reports whether the principal holds the named role.
func (p Principal) HasRole(name string) bool {
	return slices.Contains(p.Roles, name)
}

// IsSuperAdmin reports whether the principal holds the super-admin role.
func (p Principal) IsSuperAdmin() bool {
	return p.HasRole(RoleNameSuperAdmin)
}

// Can reports whether the principal holds permission.
func (p Principal) Can(permission string) bool {
	return p.Permissions.Has(permission)
}
