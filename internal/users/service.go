package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filters ListFilters) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional user writes.
type TxRepository interface {
	rbac.AssignmentStore
	CreateUser(ctx context.Context, rec userRecord) (User, error)
	// UpdateUser keeps the stored hash when rec.PasswordHash is empty.
	UpdateUser(ctx context.Context, id int64, rec userRecord) (User, error)
	DeleteUser(ctx context.Context, id int64) error
	// AllUserRoles returns the user's roles across every guard.
	AllUserRoles(ctx context.Context, userID int64) ([]rbac.Role, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Service handles user management business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
	hashCost int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: shared.NewValidator(), hashCost: bcrypt.DefaultCost}
}

// ListUsers returns a page of users visible to actor.
func (s *Service) ListUsers(ctx context.Context, actor rbac.Principal, filters ListFilters) ([]User, shared.Pagination, error) {
	filters.HideSuperAdmin = !actor.IsSuperAdmin()
	users, total, err := s.repo.ListUsers(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list users: %w", err)
	}
	return users, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

// GetUser fetches a user. Super-admin accounts are hidden from other actors.
func (s *Service) GetUser(ctx context.Context, actor rbac.Principal, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.HasRole(rbac.RoleNameSuperAdmin) && !actor.IsSuperAdmin() {
		return User{}, shared.NotFound("user", id)
	}
	return user, nil
}

// CreateUser inserts a user with its roles and direct permissions.
func (s *Service) CreateUser(ctx context.Context, actor rbac.Principal, in UserInput) (User, error) {
	in = normalizeInput(in)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	if in.Password == "" {
		return User{}, shared.NewValidationError("password", "The password field is required.")
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}

	var created User
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		requested, err := tx.RolesByIDs(ctx, in.RoleIDs)
		if err != nil {
			return err
		}
		if err := rbac.CanAssignRoles(actor, 0, nil, requested).Err(); err != nil {
			return err
		}
		created, err = tx.CreateUser(ctx, userRecord{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: hash,
			IsActive:     in.IsActive == nil || *in.IsActive,
		})
		if err != nil {
			return err
		}
		if _, err := rbac.SyncRoles(ctx, tx, created.ID, in.GuardName, in.RoleIDs); err != nil {
			return err
		}
		if _, err := rbac.SyncPermissions(ctx, tx, created.ID, in.GuardName, in.PermissionIDs); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditCreate,
			Entity:   "user",
			EntityID: shared.EntityID(created.ID),
			Meta: map[string]any{
				"email":          created.Email,
				"guard_name":     in.GuardName,
				"role_ids":       in.RoleIDs,
				"permission_ids": in.PermissionIDs,
			},
		})
	})
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return s.repo.GetUser(ctx, created.ID)
}

// UpdateUser changes profile fields and replaces the user's roles and direct
// permissions within the input guard.
func (s *Service) UpdateUser(ctx context.Context, actor rbac.Principal, id int64, in UserInput) (User, error) {
	in = normalizeInput(in)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = s.hash(in.Password); err != nil {
			return User{}, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockUser(ctx, id); err != nil {
			return err
		}
		current, err := tx.AllUserRoles(ctx, id)
		if err != nil {
			return err
		}
		if err := rbac.CanModifyUser(actor, current).Err(); err != nil {
			return err
		}
		requested, err := tx.RolesByIDs(ctx, in.RoleIDs)
		if err != nil {
			return err
		}
		if err := rbac.CanAssignRoles(actor, id, rolesInGuard(current, in.GuardName), requested).Err(); err != nil {
			return err
		}
		existing, err := tx.UpdateUser(ctx, id, userRecord{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: hash,
			IsActive:     in.IsActive == nil || *in.IsActive,
		})
		if err != nil {
			return err
		}
		roleSync, err := rbac.SyncRoles(ctx, tx, id, in.GuardName, in.RoleIDs)
		if err != nil {
			return err
		}
		permSync, err := rbac.SyncPermissions(ctx, tx, id, in.GuardName, in.PermissionIDs)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditUpdate,
			Entity:   "user",
			EntityID: shared.EntityID(id),
			Meta: map[string]any{
				"email":               existing.Email,
				"guard_name":          in.GuardName,
				"password_changed":    hash != "",
				"roles_attached":      roleSync.Attached,
				"roles_detached":      roleSync.Detached,
				"permissions_granted": permSync.Attached,
				"permissions_revoked": permSync.Detached,
			},
		})
	})
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return s.repo.GetUser(ctx, id)
}

// DeleteUser removes a user and every assignment it holds.
func (s *Service) DeleteUser(ctx context.Context, actor rbac.Principal, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockUser(ctx, id); err != nil {
			return err
		}
		roles, err := tx.AllUserRoles(ctx, id)
		if err != nil {
			return err
		}
		if err := rbac.CanDeleteUser(actor, id, roles).Err(); err != nil {
			return err
		}
		if err := tx.DeleteUser(ctx, id); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   shared.AuditDelete,
			Entity:   "user",
			EntityID: shared.EntityID(id),
			Meta:     map[string]any{"role_ids": rbac.RoleIDs(roles)},
		})
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", shared.NewValidationError("password", "The password may not be greater than 72 bytes.")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeInput(in UserInput) UserInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.GuardName == "" {
		in.GuardName = shared.GuardWeb
	}
	return in
}

func rolesInGuard(roles []rbac.Role, guard shared.Guard) []rbac.Role {
	out := make([]rbac.Role, 0, len(roles))
	for _, r := range roles {
		if r.GuardName == guard {
			out = append(out, r)
		}
	}
	return out
}
