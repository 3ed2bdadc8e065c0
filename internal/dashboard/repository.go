package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the dashboard queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) count(ctx context.Context, sql string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, sql).Scan(&n)
	return n, err
}

// CountUsers returns the number of accounts.
func (r *Repository) CountUsers(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

// CountRoles returns the number of roles across guards.
func (r *Repository) CountRoles(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM roles`)
}

// CountPermissions returns the number of permissions across guards.
func (r *Repository) CountPermissions(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM permissions`)
}

// RecentUsers returns the newest accounts.
func (r *Repository) RecentUsers(ctx context.Context, limit int) ([]RecentUser, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, created_at FROM users ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RecentUser
	for rows.Next() {
		var u RecentUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
