// Package rbac checks organization roles against the membership store.
package rbac

import (
	"context"
	"errors"
	"fmt"

	"crm-dashboard/backend/internal/membership/domain"
)

var (
	// ErrUnauthenticated means no user or org was supplied.
	ErrUnauthenticated = errors.New("org and user context required")
	// ErrNotMember means the user has no membership in the org.
	ErrNotMember = errors.New("not a member of this organization")
	// ErrNotAdmin means the user is a member without an owner or admin role.
	ErrNotAdmin = errors.New("organization admin or owner required")
)

// OrgMembershipGetter returns a user's membership in an org.
type OrgMembershipGetter interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error)
}

// RequireOrgMember returns userID's current membership in orgID (any role).
// Store failures are wrapped; callers map them to an internal error.
func RequireOrgMember(ctx context.Context, getter OrgMembershipGetter, userID, orgID string) (*domain.Membership, error) {
	if userID == "" || orgID == "" {
		return nil, ErrUnauthenticated
	}
	m, err := getter.GetMembershipByUserAndOrg(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve membership: %w", err)
	}
	if m == nil {
		return nil, ErrNotMember
	}
	return m, nil
}
