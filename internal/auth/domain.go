package auth

import (
	"time"

	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public view of the signed-in user.
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Profile strips credentials from u.
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Credentials is the login payload of both guards.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionRecord describes a login session kept in user_sessions.
type SessionRecord struct {
	ID        string
	UserID    int64
	Guard     shared.Guard
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// Token is an issued api guard bearer token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
