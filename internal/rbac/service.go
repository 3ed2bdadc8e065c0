package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// PrincipalStore loads what a user holds within a guard.
type PrincipalStore interface {
	// UserActive reports false for a missing user.
	UserActive(ctx context.Context, userID int64) (bool, error)
	UserRoles(ctx context.Context, userID int64, guard shared.Guard) ([]Role, error)
	UserDirectPermissions(ctx context.Context, userID int64, guard shared.Guard) ([]Permission, error)
}

// RegistryStore provisions registry permissions and system roles.
type RegistryStore interface {
	// UpsertPermission reports created=true when the row did not exist.
	UpsertPermission(ctx context.Context, name string, guard shared.Guard, description string) (perm Permission, created bool, err error)
	UpsertRole(ctx context.Context, name string, guard shared.Guard) (role Role, created bool, err error)
	RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// TxStore is available inside Repository.WithTx.
type TxStore interface {
	AssignmentStore
	RegistryStore
}

// Repository is the persistence port of Service.
type Repository interface {
	PrincipalStore
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// PGRepository implements Repository on a pgx pool.
type PGRepository struct {
	*PGStore
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{PGStore: NewPGStore(pool), pool: pool}
}

// WithTx wraps fn in a db.WithTx transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewPGStore(tx))
	})
}

// Service resolves principals and keeps the permission registry provisioned.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ResolvePrincipal loads the roles and effective permissions of userID in
// guard. A deactivated or deleted user resolves to shared.ErrUnauthorized.
func (s *Service) ResolvePrincipal(ctx context.Context, userID int64, guard shared.Guard) (Principal, error) {
	active, err := s.repo.UserActive(ctx, userID)
	if err != nil {
		return Principal{}, fmt.Errorf("rbac: load user: %w", err)
	}
	if !active {
		return Principal{}, shared.ErrUnauthorized
	}
	roles, err := s.repo.UserRoles(ctx, userID, guard)
	if err != nil {
		return Principal{}, fmt.Errorf("rbac: load roles: %w", err)
	}
	direct, err := s.repo.UserDirectPermissions(ctx, userID, guard)
	if err != nil {
		return Principal{}, fmt.Errorf("rbac: load permissions: %w", err)
	}
	return NewPrincipal(userID, guard, roles, direct), nil
}

// EffectivePermissions returns the sorted permission names of userID in guard.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64, guard shared.Guard) ([]string, error) {
	p, err := s.ResolvePrincipal(ctx, userID, guard)
	if err != nil {
		return nil, err
	}
	return p.Permissions.Names(), nil
}

// RegistryReport summarises an EnsureRegistry run.
type RegistryReport struct {
	Permissions int
	Roles       int
	Granted     int
}

// EnsureRegistry upserts the registry permissions and system roles for every
// registry guard. super-admin always holds every registry permission. The
// other system roles receive their seed permissions when the role or the
// permission is first created, so later edits by administrators survive
// restarts.
func (s *Service) EnsureRegistry(ctx context.Context) (RegistryReport, error) {
	var report RegistryReport
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		report = RegistryReport{}
		for _, guard := range RegistryGuards {
			ids := make(map[string]int64, len(registry))
			fresh := make(map[string]bool, len(registry))
			for _, entry := range registry {
				perm, created, err := tx.UpsertPermission(ctx, entry.Name, guard, entry.Description)
				if err != nil {
					return fmt.Errorf("upsert permission %s: %w", entry.Name, err)
				}
				ids[perm.Name] = perm.ID
				fresh[perm.Name] = created
				report.Permissions++
			}
			for _, sys := range SystemRoles() {
				role, created, err := tx.UpsertRole(ctx, sys.String(), guard)
				if err != nil {
					return fmt.Errorf("upsert role %s: %w", sys, err)
				}
				report.Roles++
				var want []int64
				for _, name := range SeedPermissions(sys) {
					if created || sys == RoleSuperAdmin || fresh[name] {
						want = append(want, ids[name])
					}
				}
				if len(want) == 0 {
					continue
				}
				current, err := tx.RolePermissionIDs(ctx, role.ID)
				if err != nil {
					return err
				}
				missing := diff(current, uniqueSorted(want)).Attached
				if len(missing) == 0 {
					continue
				}
				if err := tx.AttachRolePermissions(ctx, role.ID, missing); err != nil {
					return fmt.Errorf("grant %s: %w", sys, err)
				}
				report.Granted += len(missing)
			}
		}
		return nil
	})
	if err != nil {
		return RegistryReport{}, fmt.Errorf("rbac: ensure registry: %w", err)
	}
	return report, nil
}
