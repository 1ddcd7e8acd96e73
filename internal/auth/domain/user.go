package domain

import (
	"time"

	"github.com/bbmovie/auth/pkg/josex"
)

// Roles assignable to users.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account holder. Attributes feed directly into token claims;
// changing any of them makes every outstanding token for the user stale.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string

	Attributes josex.Attributes

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
