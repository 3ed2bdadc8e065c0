package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

const roleSelect = `SELECT r.id, r.name, r.guard_name, r.created_at, r.updated_at,
	(SELECT COUNT(*) FROM model_has_roles mr WHERE mr.role_id = r.id AND mr.model_type = 'user') AS users_count
	FROM roles r`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns one page of roles ordered by id, with permissions and
// holder counts, plus the total count.
func (r *Repository) ListRoles(ctx context.Context, filters RoleListFilters) ([]rbac.Role, int, error) {
	where, args := roleWhere(filters)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count roles: %w", err)
	}

	page := shared.NewPagination(filters.Page, filters.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`%s%s ORDER BY r.id LIMIT $%d OFFSET $%d`, roleSelect, where, len(args)-1, len(args))
	roles, err := r.queryRoles(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

// AllRoles returns every role matching filters without paging.
func (r *Repository) AllRoles(ctx context.Context, filters RoleListFilters) ([]rbac.Role, error) {
	where, args := roleWhere(filters)
	return r.queryRoles(ctx, roleSelect+where+` ORDER BY r.id`, args...)
}

// GetRole fetches a role by ID with its permissions.
func (r *Repository) GetRole(ctx context.Context, id int64) (rbac.Role, error) {
	roles, err := r.queryRoles(ctx, roleSelect+` WHERE r.id = $1`, id)
	if err != nil {
		return rbac.Role{}, err
	}
	if len(roles) == 0 {
		return rbac.Role{}, shared.NotFound("role", id)
	}
	return roles[0], nil
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{PGStore: rbac.NewPGStore(tx), tx: tx})
	})
}

func (r *Repository) queryRoles(ctx context.Context, query string, args ...any) ([]rbac.Role, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	roles := make([]rbac.Role, 0)
	for rows.Next() {
		var role rbac.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt, &role.UsersCount); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := rbac.LoadRolePermissions(ctx, r.pool, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

type txRepo struct {
	*rbac.PGStore
	tx pgx.Tx
}

func (t *txRepo) CreateRole(ctx context.Context, name string, guard shared.Guard) (rbac.Role, error) {
	var role rbac.Role
	err := t.tx.QueryRow(ctx, `INSERT INTO roles (name, guard_name) VALUES ($1, $2)
		RETURNING id, name, guard_name, created_at, updated_at`, name, guard).
		Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return rbac.Role{}, roleWriteError(err, name, guard)
	}
	return role, nil
}

func (t *txRepo) UpdateRole(ctx context.Context, id int64, name string) (rbac.Role, error) {
	var role rbac.Role
	err := t.tx.QueryRow(ctx, `UPDATE roles SET name = $2, updated_at = NOW() WHERE id = $1
		RETURNING id, name, guard_name, created_at, updated_at`, id, name).
		Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Role{}, shared.NotFound("role", id)
	}
	if err != nil {
		return rbac.Role{}, roleWriteError(err, name, role.GuardName)
	}
	return role, nil
}

func (t *txRepo) DeleteRole(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("role", id)
	}
	return nil
}

func (t *txRepo) CountRoleHolders(ctx context.Context, id int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM model_has_roles WHERE role_id = $1 AND model_type = $2`, id, rbac.ModelTypeUser).Scan(&n)
	return n, err
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(t.tx).Record(ctx, log)
}

func roleWhere(f RoleListFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, db.ContainsPattern(search))
		clauses = append(clauses, fmt.Sprintf("r.name ILIKE $%d", len(args)))
	}
	if f.Guard != "" {
		args = append(args, f.Guard)
		clauses = append(clauses, fmt.Sprintf("r.guard_name = $%d", len(args)))
	}
	if f.HideSuperAdmin {
		args = append(args, rbac.RoleNameSuperAdmin)
		clauses = append(clauses, fmt.Sprintf("r.name <> $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func roleWriteError(err error, name string, guard shared.Guard) error {
	if _, ok := db.IsUniqueViolation(err); ok {
		if guard == "" {
			return shared.Conflict("name", fmt.Sprintf("The role %q already exists.", name))
		}
		return shared.Conflict("name", fmt.Sprintf("The role %q already exists for guard %s.", name, guard))
	}
	return err
}
