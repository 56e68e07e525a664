package repository

import (
	"context"

	"crm-dashboard/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// SetStatus updates the status of an existing user. Returns false when no user has id.
	SetStatus(ctx context.Context, id string, status domain.UserStatus) (bool, error)
}
