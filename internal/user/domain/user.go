package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the core user entity. Email is stored lower-cased and is unique.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	if u.Status != UserStatusActive && u.Status != UserStatusDisabled {
		return errors.New("status must be active or disabled")
	}
	return nil
}

// IsActive reports whether the user may sign in.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
