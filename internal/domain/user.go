package domain

import (
	"context"
	"time"
)

// User represents a bot user
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	// Timezone is an IANA zone name; empty means the configured default.
	Timezone      string
	WorkStartHour int
	WorkEndHour   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName returns the best short name for messages
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetAll(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, user *User) error
}
