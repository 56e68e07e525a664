package rbac

import (
	"context"

	"crm-dashboard/backend/internal/membership/domain"
)

// RequireOrgAdmin is RequireOrgMember plus a role check: the stored role must be owner or admin.
// The role comes from the store, not from token claims, so demotions apply immediately.
func RequireOrgAdmin(ctx context.Context, getter OrgMembershipGetter, userID, orgID string) (*domain.Membership, error) {
	m, err := RequireOrgMember(ctx, getter, userID, orgID)
	if err != nil {
		return nil, err
	}
	if !m.Role.CanAdminister() {
		return nil, ErrNotAdmin
	}
	return m, nil
}
