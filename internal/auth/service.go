package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// CurrentUser loads the account behind an authenticated identity.
func (s *Service) CurrentUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrUnauthorized
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres and audits the login.
func (s *Service) RegisterSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID != "" {
		if err := s.repo.CreateSession(ctx, rec); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}
	return s.repo.RecordAudit(ctx, shared.AuditLog{
		ActorID:  rec.UserID,
		Action:   shared.AuditLogin,
		Entity:   "user",
		EntityID: shared.EntityID(rec.UserID),
		Meta:     map[string]any{"guard": rec.Guard, "ip": rec.IP},
	})
}

// RemoveSession deletes a session record from postgres and audits the logout.
func (s *Service) RemoveSession(ctx context.Context, id string, userID int64) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if userID == 0 {
		return nil
	}
	return s.repo.RecordAudit(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   shared.AuditLogout,
		Entity:   "user",
		EntityID: shared.EntityID(userID),
	})
}
