// Package user provides platform user records keyed by email.
package user

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrUserNotFound = errors.New("user: not found")
	ErrEmailTaken   = errors.New("user: email already registered")
)

// Status represents a user's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// User represents a person with access to an organization's workspace.
// Email is globally unique across organizations.
type User struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"orgId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists user data.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	ListByOrg(ctx context.Context, orgID string) ([]*User, error)
}
