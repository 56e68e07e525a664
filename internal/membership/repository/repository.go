package repository

import (
	"context"

	"crm-dashboard/backend/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
	// GetPrimaryMembership returns the user's earliest membership, which decides the org and role in tokens.
	GetPrimaryMembership(ctx context.Context, userID string) (*domain.Membership, error)
	CreateMembership(ctx context.Context, m *domain.Membership) error
}
