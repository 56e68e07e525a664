package repository

import (
	"context"

	"crm-dashboard/backend/internal/organization/domain"
)

// Repository stores the CRM workspaces that users, memberships and audit
// entries are scoped to. A workspace is created once at registration.
type Repository interface {
	GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error)
	CreateOrganization(ctx context.Context, o *domain.Org) error
}
