package model

import "time"

// User represents an application user record as stored in the
// `users` table. Hosts list venues; everyone else is a renter.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	IsHost       bool      // users.is_host
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Role is the JWT role claim derived from IsHost.
func (u User) Role() string {
	if u.IsHost {
		return RoleHost
	}
	return RoleRenter
}

const (
	RoleHost   = "HOST"
	RoleRenter = "RENTER"
)

// RefreshToken models an entry in the `refresh_tokens` table. The plain
// token is never stored; only its SHA-256 hex digest.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
