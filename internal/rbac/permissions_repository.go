package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// PermissionFilters narrows permission listings.
type PermissionFilters struct {
	Search  string
	Guard   shared.Guard
	Group   string
	Page    int
	PerPage int
}

// PermissionInput carries create and update fields.
type PermissionInput struct {
	Name        string       `json:"name" validate:"required,max=255,permission_name"`
	GuardName   shared.Guard `json:"guard_name" validate:"omitempty,oneof=web api"`
	Description string       `json:"description" validate:"max=1000"`
}

// PermissionsRepositoryPort is the persistence port of PermissionsService.
type PermissionsRepositoryPort interface {
	ListPermissions(ctx context.Context, filters PermissionFilters) ([]Permission, int, error)
	AllPermissions(ctx context.Context, guard shared.Guard) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	WithTx(ctx context.Context, fn func(context.Context, PermissionsTx) error) error
}

// PermissionsTx exposes transactional permission writes.
type PermissionsTx interface {
	LockPermission(ctx context.Context, id int64) (Permission, error)
	CreatePermission(ctx context.Context, in PermissionInput) (Permission, error)
	UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// PermissionsRepository implements PermissionsRepositoryPort on PostgreSQL.
type PermissionsRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionsRepository constructs a PermissionsRepository.
func NewPermissionsRepository(pool *pgxpool.Pool) *PermissionsRepository {
	return &PermissionsRepository{pool: pool}
}

// ListPermissions returns one page of permissions ordered by name and the total count.
func (r *PermissionsRepository) ListPermissions(ctx context.Context, filters PermissionFilters) ([]Permission, int, error) {
	where, args := permissionWhere(filters)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count permissions: %w", err)
	}

	page := shared.NewPagination(filters.Page, filters.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM permissions p%s ORDER BY p.name, p.guard_name LIMIT $%d OFFSET $%d`,
		permissionColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list permissions: %w", err)
	}
	perms, err := collectPermissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return perms, total, nil
}

// AllPermissions returns every permission of guard, or of all guards when guard is empty.
func (r *PermissionsRepository) AllPermissions(ctx context.Context, guard shared.Guard) ([]Permission, error) {
	where, args := permissionWhere(PermissionFilters{Guard: guard})
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions p`+where+` ORDER BY p.name, p.guard_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return collectPermissions(rows)
}

// GetPermission fetches a permission by ID.
func (r *PermissionsRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions p WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.NotFound("permission", id)
	}
	return p, err
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *PermissionsRepository) WithTx(ctx context.Context, fn func(context.Context, PermissionsTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &permissionsTx{tx: tx})
	})
}

type permissionsTx struct {
	tx pgx.Tx
}

func (t *permissionsTx) LockPermission(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(t.tx.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions p WHERE p.id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.NotFound("permission", id)
	}
	return p, err
}

func (t *permissionsTx) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	p, err := scanPermission(t.tx.QueryRow(ctx, `INSERT INTO permissions AS p (name, guard_name, description)
		VALUES ($1, $2, $3)
		RETURNING `+permissionColumns, in.Name, in.GuardName, in.Description))
	if err != nil {
		return Permission{}, permissionWriteError(err, in)
	}
	return p, nil
}

func (t *permissionsTx) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	p, err := scanPermission(t.tx.QueryRow(ctx, `UPDATE permissions AS p
		SET name = $2, description = $3, updated_at = NOW()
		WHERE p.id = $1
		RETURNING `+permissionColumns, id, in.Name, in.Description))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.NotFound("permission", id)
	}
	if err != nil {
		return Permission{}, permissionWriteError(err, in)
	}
	return p, nil
}

func (t *permissionsTx) DeletePermission(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("permission", id)
	}
	return nil
}

func (t *permissionsTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(t.tx).Record(ctx, log)
}

func permissionWhere(f PermissionFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, db.ContainsPattern(search))
		clauses = append(clauses, fmt.Sprintf("p.name ILIKE $%d", len(args)))
	}
	if f.Guard != "" {
		args = append(args, f.Guard)
		clauses = append(clauses, fmt.Sprintf("p.guard_name = $%d", len(args)))
	}
	if group := strings.TrimSpace(f.Group); group != "" {
		args = append(args, group)
		clauses = append(clauses, fmt.Sprintf("regexp_replace(p.name, '[._].*$', '') = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func permissionWriteError(err error, in PermissionInput) error {
	if _, ok := db.IsUniqueViolation(err); ok {
		return shared.Conflict("name", fmt.Sprintf("The permission %q already exists for guard %s.", in.Name, in.GuardName))
	}
	return err
}
