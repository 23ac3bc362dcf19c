package core

import (
	"context"
	"time"
)

const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleStoreAdmin = "STORE_ADMIN"
)

// User is an operator who acts on stores. Users assigned to a store are
// listed as its admins in reconciliation reports.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the identity recorded on mutations made by u.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Username: u.Username}
}

// UserService provides user lookup and credential checks.
type UserService interface {
	CreateUser(ctx context.Context, username, password, role string) (*User, error)
	// Authenticate returns the active user whose password matches.
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, userID int64) (*User, error)
}
