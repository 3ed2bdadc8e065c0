package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, filters RoleListFilters) ([]rbac.Role, int, error)
	AllRoles(ctx context.Context, filters RoleListFilters) ([]rbac.Role, error)
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional role writes.
type TxRepository interface {
	rbac.AssignmentStore
	CreateRole(ctx context.Context, name string, guard shared.Guard) (rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, name string) (rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) error
	CountRoleHolders(ctx context.Context, id int64) (int, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: shared.NewValidator()}
}

// ListRoles returns a page of roles visible to actor.
func (s *Service) ListRoles(ctx context.Context, actor rbac.Principal, filters RoleListFilters) ([]rbac.Role, shared.Pagination, error) {
	if filters.Guard != "" && !filters.Guard.Valid() {
		return nil, shared.Pagination{}, shared.NewValidationError("guard", "The selected guard is invalid.")
	}
	filters.HideSuperAdmin = !actor.IsSuperAdmin()
	roles, total, err := s.repo.ListRoles(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return roles, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// Options returns every role of guard actor may see, for assignment forms.
func (s *Service) Options(ctx context.Context, actor rbac.Principal, guard shared.Guard) ([]rbac.Role, error) {
	return s.repo.AllRoles(ctx, RoleListFilters{Guard: guard, HideSuperAdmin: !actor.IsSuperAdmin()})
}

// GetRole fetches a role. The super-admin role is hidden from other actors.
func (s *Service) GetRole(ctx context.Context, actor rbac.Principal, id int64) (rbac.Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return rbac.Role{}, err
	}
	if role.IsSuperAdmin() && !actor.IsSuperAdmin() {
		return rbac.Role{}, shared.NotFound("role", id)
	}
	return role, nil
}

// CreateRole inserts a role and grants it the requested permissions.
func (s *Service) CreateRole(ctx context.Context, actor rbac.Principal, in RoleInput) (rbac.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.GuardName == "" {
		in.GuardName = shared.GuardWeb
	}
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return rbac.Role{}, err
	}
	if err := rbac.CanModifyRole(actor, rbac.Role{Name: in.Name}).Err(); err != nil {
		return rbac.Role{}, err
	}

	var created rbac.Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.CreateRole(ctx, in.Name, in.GuardName)
		if err != nil {
			return err
		}
		if len(in.PermissionIDs) > 0 {
			if _, err := rbac.SyncRolePermissions(ctx, tx, created.ID, created.GuardName, in.PermissionIDs); err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditCreate,
			Entity:   "role",
			EntityID: shared.EntityID(created.ID),
			Meta:     map[string]any{"name": created.Name, "guard_name": created.GuardName, "permission_ids": in.PermissionIDs},
		})
	})
	if err != nil {
		return rbac.Role{}, fmt.Errorf("create role: %w", err)
	}
	return s.repo.GetRole(ctx, created.ID)
}

// UpdateRole renames a role and, when PermissionIDs is set, replaces its permissions.
func (s *Service) UpdateRole(ctx context.Context, actor rbac.Principal, id int64, in RoleInput) (rbac.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return rbac.Role{}, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if current.IsSuperAdmin() && !actor.IsSuperAdmin() {
			return shared.NotFound("role", id)
		}
		if err := rbac.CanModifyRole(actor, current).Err(); err != nil {
			return err
		}
		if in.GuardName != "" && in.GuardName != current.GuardName {
			return shared.NewValidationError("guard_name", "The guard of a role cannot be changed.")
		}
		if _, system := current.System(); system && in.Name != current.Name {
			return shared.NewValidationError("name", "System roles cannot be renamed.")
		}
		if err := rbac.CanModifyRole(actor, rbac.Role{Name: in.Name}).Err(); err != nil {
			return err
		}
		if in.Name != current.Name {
			if _, err := tx.UpdateRole(ctx, id, in.Name); err != nil {
				return err
			}
		}
		var sync rbac.SyncResult
		if in.PermissionIDs != nil {
			sync, err = rbac.SyncRolePermissions(ctx, tx, id, current.GuardName, in.PermissionIDs)
			if err != nil {
				return err
			}
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditUpdate,
			Entity:   "role",
			EntityID: shared.EntityID(id),
			Meta: map[string]any{
				"from":                current.Name,
				"to":                  in.Name,
				"permissions_granted": sync.Attached,
				"permissions_revoked": sync.Detached,
			},
		})
	})
	if err != nil {
		return rbac.Role{}, fmt.Errorf("update role: %w", err)
	}
	return s.repo.GetRole(ctx, id)
}

// DeleteRole removes a role and detaches it from every holder.
func (s *Service) DeleteRole(ctx context.Context, actor rbac.Principal, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSuperAdmin() && !actor.IsSuperAdmin() {
			return shared.NotFound("role", id)
		}
		holders, err := tx.CountRoleHolders(ctx, id)
		if err != nil {
			return err
		}
		if err := rbac.CanDeleteRole(actor, role, holders).Err(); err != nil {
			return err
		}
		if err := tx.DeleteRole(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditDelete,
			Entity:   "role",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"name": role.Name, "guard_name": role.GuardName, "holders": holders},
		})
	})
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}
