// Package dashboard serves the landing screen counters.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// requestTimeout bounds the fan-out of count queries.
const requestTimeout = 2 * time.Second

// recentUsersLimit is the number of newest accounts shown.
const recentUsersLimit = 5

// RecentUser is a newest-first account entry.
type RecentUser struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the dashboard payload.
type Summary struct {
	AppName          string       `json:"app_name"`
	TotalUsers       int          `json:"total_users"`
	TotalRoles       int          `json:"total_roles"`
	TotalPermissions int          `json:"total_permissions"`
	RecentUsers      []RecentUser `json:"recent_users"`
}

// RepositoryPort exposes the counters.
type RepositoryPort interface {
	CountUsers(ctx context.Context) (int, error)
	CountRoles(ctx context.Context) (int, error)
	CountPermissions(ctx context.Context) (int, error)
	RecentUsers(ctx context.Context, limit int) ([]RecentUser, error)
}

// AppNameSource returns the configured application name.
type AppNameSource func() string

// Service assembles the dashboard summary.
type Service struct {
	repo    RepositoryPort
	appName AppNameSource
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, appName AppNameSource) *Service {
	return &Service{repo: repo, appName: appName}
}

// Summary runs the count queries concurrently.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var out Summary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountUsers(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		out.TotalUsers = n
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.CountRoles(ctx)
		if err != nil {
			return fmt.Errorf("count roles: %w", err)
		}
		out.TotalRoles = n
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.CountPermissions(ctx)
		if err != nil {
			return fmt.Errorf("count permissions: %w", err)
		}
		out.TotalPermissions = n
		return nil
	})
	g.Go(func() error {
		users, err := s.repo.RecentUsers(ctx, recentUsersLimit)
		if err != nil {
			return fmt.Errorf("recent users: %w", err)
		}
		out.RecentUsers = users
		return nil
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	if out.RecentUsers == nil {
		out.RecentUsers = []RecentUser{}
	}
	if s.appName != nil {
		out.AppName = s.appName()
	}
	return out, nil
}
