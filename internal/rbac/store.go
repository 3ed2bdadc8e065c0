package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/db"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// ModelTypeUser tags user rows in the polymorphic assignment tables.
const ModelTypeUser = "user"

const (
	roleColumns       = `r.id, r.name, r.guard_name, r.created_at, r.updated_at`
	permissionColumns = `p.id, p.name, p.guard_name, p.description, p.created_at, p.updated_at`
)

// PGStore implements the assignment, principal and registry stores on PostgreSQL.
type PGStore struct {
	db db.DBTX
}

// NewPGStore wraps a pool or a transaction.
func NewPGStore(conn db.DBTX) *PGStore {
	return &PGStore{db: conn}
}

var (
	_ AssignmentStore = (*PGStore)(nil)
	_ PrincipalStore  = (*PGStore)(nil)
	_ RegistryStore   = (*PGStore)(nil)
)

func (s *PGStore) LockUser(ctx context.Context, userID int64) error {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.NotFound("user", userID)
	}
	return err
}

func (s *PGStore) LockRole(ctx context.Context, roleID int64) (Role, error) {
	row := s.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.id = $1 FOR UPDATE`, roleID)
	role, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.NotFound("role", roleID)
	}
	return role, err
}

func (s *PGStore) RolesByIDs(ctx context.Context, ids []int64) ([]Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.id = ANY($1) ORDER BY r.id`, ids)
	if err != nil {
		return nil, err
	}
	return collectRoles(rows)
}

func (s *PGStore) PermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions p WHERE p.id = ANY($1) ORDER BY p.name`, ids)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *PGStore) UserRoleIDs(ctx context.Context, userID int64, guard shared.Guard) ([]int64, error) {
	return s.ids(ctx, `SELECT mr.role_id FROM model_has_roles mr
		JOIN roles r ON r.id = mr.role_id
		WHERE mr.model_type = $1 AND mr.model_id = $2 AND r.guard_name = $3
		ORDER BY mr.role_id`, ModelTypeUser, userID, guard)
}

func (s *PGStore) UserPermissionIDs(ctx context.Context, userID int64, guard shared.Guard) ([]int64, error) {
	return s.ids(ctx, `SELECT mp.permission_id FROM model_has_permissions mp
		JOIN permissions p ON p.id = mp.permission_id
		WHERE mp.model_type = $1 AND mp.model_id = $2 AND p.guard_name = $3
		ORDER BY mp.permission_id`, ModelTypeUser, userID, guard)
}

func (s *PGStore) RolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	return s.ids(ctx, `SELECT permission_id FROM role_has_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
}

func (s *PGStore) AttachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO model_has_roles (role_id, model_type, model_id)
		SELECT unnest($1::bigint[]), $2::text, $3::bigint
		ON CONFLICT DO NOTHING`, roleIDs, ModelTypeUser, userID)
	return err
}

func (s *PGStore) DetachUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM model_has_roles WHERE model_type = $1 AND model_id = $2 AND role_id = ANY($3)`,
		ModelTypeUser, userID, roleIDs)
	return err
}

func (s *PGStore) AttachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO model_has_permissions (permission_id, model_type, model_id)
		SELECT unnest($1::bigint[]), $2::text, $3::bigint
		ON CONFLICT DO NOTHING`, permissionIDs, ModelTypeUser, userID)
	return err
}

func (s *PGStore) DetachUserPermissions(ctx context.Context, userID int64, permissionIDs []int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM model_has_permissions WHERE model_type = $1 AND model_id = $2 AND permission_id = ANY($3)`,
		ModelTypeUser, userID, permissionIDs)
	return err
}

func (s *PGStore) AttachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	_, err := s.db.Exec(ctx, `INSERT INTO role_has_permissions (permission_id, role_id)
		SELECT unnest($1::bigint[]), $2::bigint
		ON CONFLICT DO NOTHING`, permissionIDs, roleID)
	return err
}

func (s *PGStore) DetachRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM role_has_permissions WHERE role_id = $1 AND permission_id = ANY($2)`, roleID, permissionIDs)
	return err
}

func (s *PGStore) UserActive(ctx context.Context, userID int64) (bool, error) {
	var active bool
	err := s.db.QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return active, err
}

// UserRoles returns the user's roles in guard with their permissions loaded.
func (s *PGStore) UserRoles(ctx context.Context, userID int64, guard shared.Guard) ([]Role, error) {
	rows, err := s.db.Query(ctx, `SELECT `+roleColumns+` FROM roles r
		JOIN model_has_roles mr ON mr.role_id = r.id
		WHERE mr.model_type = $1 AND mr.model_id = $2 AND r.guard_name = $3
		ORDER BY r.id`, ModelTypeUser, userID, guard)
	if err != nil {
		return nil, err
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	if err := LoadRolePermissions(ctx, s.db, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// UserDirectPermissions returns permissions granted to the user outside any role.
func (s *PGStore) UserDirectPermissions(ctx context.Context, userID int64, guard shared.Guard) ([]Permission, error) {
	rows, err := s.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions p
		JOIN model_has_permissions mp ON mp.permission_id = p.id
		WHERE mp.model_type = $1 AND mp.model_id = $2 AND p.guard_name = $3
		ORDER BY p.name`, ModelTypeUser, userID, guard)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (s *PGStore) UpsertPermission(ctx context.Context, name string, guard shared.Guard, description string) (Permission, bool, error) {
	var (
		p       Permission
		created bool
	)
	err := s.db.QueryRow(ctx, `INSERT INTO permissions AS p (name, guard_name, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name, guard_name) DO UPDATE
		SET description = CASE WHEN p.description = '' THEN EXCLUDED.description ELSE p.description END
		RETURNING `+permissionColumns+`, (p.xmax = 0)`, name, guard, description).
		Scan(&p.ID, &p.Name, &p.GuardName, &p.Description, &p.CreatedAt, &p.UpdatedAt, &created)
	return p, created, err
}

func (s *PGStore) UpsertRole(ctx context.Context, name string, guard shared.Guard) (Role, bool, error) {
	var (
		r       Role
		created bool
	)
	err := s.db.QueryRow(ctx, `INSERT INTO roles AS r (name, guard_name)
		VALUES ($1, $2)
		ON CONFLICT (name, guard_name) DO UPDATE SET name = EXCLUDED.name
		RETURNING `+roleColumns+`, (r.xmax = 0)`, name, guard).
		Scan(&r.ID, &r.Name, &r.GuardName, &r.CreatedAt, &r.UpdatedAt, &created)
	return r, created, err
}

// LoadRolePermissions fills Permissions of every role in place.
func LoadRolePermissions(ctx context.Context, conn db.DBTX, roles []Role) error {
	if len(roles) == 0 {
		return nil
	}
	index := make(map[int64]int, len(roles))
	for i := range roles {
		index[roles[i].ID] = i
		roles[i].Permissions = []Permission{}
	}
	rows, err := conn.Query(ctx, `SELECT rp.role_id, `+permissionColumns+` FROM role_has_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY p.name`, RoleIDs(roles))
	if err != nil {
		return fmt.Errorf("load role permissions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			roleID int64
			p      Permission
		)
		if err := rows.Scan(&roleID, &p.ID, &p.Name, &p.GuardName, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, p)
		}
	}
	return rows.Err()
}

func (s *PGStore) ids(ctx context.Context, sql string, args ...any) ([]int64, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanRole reads the columns listed in roleColumns.
func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.GuardName, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Name, &p.GuardName, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func collectRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
