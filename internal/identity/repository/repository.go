package repository

import (
	"context"

	"crm-dashboard/backend/internal/identity/domain"
)

// Repository stores the credential records a CRM user signs in with.
// Each user holds at most one identity per provider; only local passwords exist today.
type Repository interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
}
