package users

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

const userColumns = `u.id, u.name, u.email, u.is_active, u.created_at, u.updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns one page of users, newest first, with their roles and
// direct permissions, plus the total count.
func (r *Repository) ListUsers(ctx context.Context, filters ListFilters) ([]User, int, error) {
	where, args := userWhere(filters)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	page := shared.NewPagination(filters.Page, filters.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM users u%s ORDER BY u.created_at DESC, u.id DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := loadAssignments(ctx, r.pool, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetUser fetches a user by ID with roles and direct permissions.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	if err != nil {
		return User{}, err
	}
	users, err := collectUsers(rows)
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, shared.NotFound("user", id)
	}
	if err := loadAssignments(ctx, r.pool, users); err != nil {
		return User{}, err
	}
	return users[0], nil
}

// CountUsers returns the number of user accounts.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{PGStore: rbac.NewPGStore(tx), tx: tx})
	})
}

type txRepo struct {
	*rbac.PGStore
	tx pgx.Tx
}

func (t *txRepo) CreateUser(ctx context.Context, rec userRecord) (User, error) {
	rows, err := t.tx.Query(ctx, `INSERT INTO users AS u (name, email, password_hash, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, rec.Name, rec.Email, rec.PasswordHash, rec.IsActive)
	if err != nil {
		return User{}, err
	}
	users, err := collectUsers(rows)
	if err != nil {
		return User{}, userWriteError(err)
	}
	return users[0], nil
}

func (t *txRepo) UpdateUser(ctx context.Context, id int64, rec userRecord) (User, error) {
	rows, err := t.tx.Query(ctx, `UPDATE users AS u
		SET name = $2, email = $3, is_active = $4,
			password_hash = CASE WHEN $5 = '' THEN u.password_hash ELSE $5 END,
			updated_at = NOW()
		WHERE u.id = $1
		RETURNING `+userColumns, id, rec.Name, rec.Email, rec.IsActive, rec.PasswordHash)
	if err != nil {
		return User{}, err
	}
	users, err := collectUsers(rows)
	if err != nil {
		return User{}, userWriteError(err)
	}
	if len(users) == 0 {
		return User{}, shared.NotFound("user", id)
	}
	return users[0], nil
}

func (t *txRepo) DeleteUser(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM model_has_roles WHERE model_type = $1 AND model_id = $2`, rbac.ModelTypeUser, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM model_has_permissions WHERE model_type = $1 AND model_id = $2`, rbac.ModelTypeUser, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("user", id)
	}
	return nil
}

func (t *txRepo) AllUserRoles(ctx context.Context, userID int64) ([]rbac.Role, error) {
	roles, _, err := userAssignments(ctx, t.tx, []int64{userID})
	if err != nil {
		return nil, err
	}
	return roles[userID], nil
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.NewAuditLogger(t.tx).Record(ctx, log)
}

func userWhere(f ListFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, db.ContainsPattern(search))
		clauses = append(clauses, fmt.Sprintf("(u.name ILIKE $%d OR u.email ILIKE $%d)", len(args), len(args)))
	}
	if f.RoleID > 0 {
		args = append(args, f.RoleID)
		clauses = append(clauses, fmt.Sprintf(`EXISTS (SELECT 1 FROM model_has_roles mr
			WHERE mr.model_type = 'user' AND mr.model_id = u.id AND mr.role_id = $%d)`, len(args)))
	}
	if f.HideSuperAdmin {
		args = append(args, rbac.RoleNameSuperAdmin)
		clauses = append(clauses, fmt.Sprintf(`NOT EXISTS (SELECT 1 FROM model_has_roles mr
			JOIN roles r ON r.id = mr.role_id
			WHERE mr.model_type = 'user' AND mr.model_id = u.id AND r.name = $%d)`, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// loadAssignments fills Roles and Permissions of every user in place.
func loadAssignments(ctx context.Context, conn db.DBTX, users []User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	roles, perms, err := userAssignments(ctx, conn, ids)
	if err != nil {
		return err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
		if users[i].Roles == nil {
			users[i].Roles = []rbac.Role{}
		}
		users[i].Permissions = perms[users[i].ID]
		if users[i].Permissions == nil {
			users[i].Permissions = []rbac.Permission{}
		}
	}
	return nil
}

func userAssignments(ctx context.Context, conn db.DBTX, userIDs []int64) (map[int64][]rbac.Role, map[int64][]rbac.Permission, error) {
	roleRows, err := conn.Query(ctx, `SELECT mr.model_id, r.id, r.name, r.guard_name, r.created_at, r.updated_at
		FROM model_has_roles mr
		JOIN roles r ON r.id = mr.role_id
		WHERE mr.model_type = $1 AND mr.model_id = ANY($2)
		ORDER BY r.id`, rbac.ModelTypeUser, userIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load user roles: %w", err)
	}
	roles := make(map[int64][]rbac.Role)
	for roleRows.Next() {
		var (
			userID int64
			role   rbac.Role
		)
		if err := roleRows.Scan(&userID, &role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt); err != nil {
			roleRows.Close()
			return nil, nil, err
		}
		roles[userID] = append(roles[userID], role)
	}
	roleRows.Close()
	if err := roleRows.Err(); err != nil {
		return nil, nil, err
	}

	permRows, err := conn.Query(ctx, `SELECT mp.model_id, p.id, p.name, p.guard_name, p.description, p.created_at, p.updated_at
		FROM model_has_permissions mp
		JOIN permissions p ON p.id = mp.permission_id
		WHERE mp.model_type = $1 AND mp.model_id = ANY($2)
		ORDER BY p.name`, rbac.ModelTypeUser, userIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load user permissions: %w", err)
	}
	defer permRows.Close()
	perms := make(map[int64][]rbac.Permission)
	for permRows.Next() {
		var (
			userID int64
			p      rbac.Permission
		)
		if err := permRows.Scan(&userID, &p.ID, &p.Name, &p.GuardName, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, nil, err
		}
		perms[userID] = append(perms[userID], p)
	}
	return roles, perms, permRows.Err()
}

func userWriteError(err error) error {
	if _, ok := db.IsUniqueViolation(err); ok {
		return shared.Conflict("email", "The email has already been taken.")
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}
