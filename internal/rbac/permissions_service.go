package rbac

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

var permissionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// PermissionGroup is one section of the grouped permission view.
type PermissionGroup struct {
	Key         string       `json:"key"`
	Label       string       `json:"label"`
	Permissions []Permission `json:"permissions"`
}

// PermissionsService manages the permission catalogue.
type PermissionsService struct {
	repo     PermissionsRepositoryPort
	validate *validator.Validate
}

// NewPermissionsService constructs a PermissionsService.
func NewPermissionsService(repo PermissionsRepositoryPort) *PermissionsService {
	v := shared.NewValidator()
	_ = v.RegisterValidation("permission_name", func(fl validator.FieldLevel) bool {
		return permissionNamePattern.MatchString(fl.Field().String())
	})
	return &PermissionsService{repo: repo, validate: v}
}

// List returns a page of permissions.
func (s *PermissionsService) List(ctx context.Context, filters PermissionFilters) ([]Permission, shared.Pagination, error) {
	if filters.Guard != "" && !filters.Guard.Valid() {
		return nil, shared.Pagination{}, shared.NewValidationError("guard", "The selected guard is invalid.")
	}
	perms, total, err := s.repo.ListPermissions(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return perms, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// Grouped returns all permissions of guard grouped by prefix.
func (s *PermissionsService) Grouped(ctx context.Context, guard shared.Guard) ([]PermissionGroup, error) {
	perms, err := s.repo.AllPermissions(ctx, guard)
	if err != nil {
		return nil, err
	}
	return GroupPermissions(perms), nil
}

// Get fetches a permission by ID.
func (s *PermissionsService) Get(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// Create adds a permission. The guard defaults to web.
func (s *PermissionsService) Create(ctx context.Context, actor Principal, in PermissionInput) (Permission, error) {
	in = normalizePermissionInput(in)
	if in.GuardName == "" {
		in.GuardName = shared.GuardWeb
	}
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Permission{}, err
	}
	var created Permission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx PermissionsTx) error {
		var err error
		created, err = tx.CreatePermission(ctx, in)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditCreate,
			Entity:   "permission",
			EntityID: shared.EntityID(created.ID),
			Meta:     map[string]any{"name": created.Name, "guard_name": created.GuardName},
		})
	})
	if err != nil {
		return Permission{}, fmt.Errorf("create permission: %w", err)
	}
	return created, nil
}

// Update changes a permission's name or description. Registry permissions
// keep their name, and the guard of a permission never changes.
func (s *PermissionsService) Update(ctx context.Context, actor Principal, id int64, in PermissionInput) (Permission, error) {
	in = normalizePermissionInput(in)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Permission{}, err
	}
	var updated Permission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx PermissionsTx) error {
		current, err := tx.LockPermission(ctx, id)
		if err != nil {
			return err
		}
		if in.GuardName == "" {
			in.GuardName = current.GuardName
		}
		if in.GuardName != current.GuardName {
			return shared.NewValidationError("guard_name", "The guard of a permission cannot be changed.")
		}
		if in.Name != current.Name && IsRegistered(current.Name) {
			return shared.NewValidationError("name", "Built-in permissions cannot be renamed.")
		}
		updated, err = tx.UpdatePermission(ctx, id, in)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditUpdate,
			Entity:   "permission",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"from": current.Name, "to": updated.Name},
		})
	})
	if err != nil {
		return Permission{}, fmt.Errorf("update permission: %w", err)
	}
	return updated, nil
}

// Delete removes a permission together with its role and user grants.
func (s *PermissionsService) Delete(ctx context.Context, actor Principal, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx PermissionsTx) error {
		current, err := tx.LockPermission(ctx, id)
		if err != nil {
			return err
		}
		if IsRegistered(current.Name) {
			return shared.Forbidden("Built-in permissions cannot be deleted.")
		}
		if err := tx.DeletePermission(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditDelete,
			Entity:   "permission",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"name": current.Name, "guard_name": current.GuardName},
		})
	})
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	return nil
}

// GroupPermissions buckets perms by their group prefix, sorted by key.
func GroupPermissions(perms []Permission) []PermissionGroup {
	caser := cases.Title(language.English)
	index := make(map[string]int)
	var groups []PermissionGroup
	for _, p := range perms {
		key := p.Group()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, PermissionGroup{
				Key:   key,
				Label: caser.String(strings.NewReplacer("-", " ", ":", " ").Replace(key)),
			})
		}
		groups[i].Permissions = append(groups[i].Permissions, p)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Key < groups[b].Key })
	return groups
}

func normalizePermissionInput(in PermissionInput) PermissionInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return in
}
