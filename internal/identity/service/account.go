package service

import (
	"context"
	"errors"
	"fmt"

	auditdomain "crm-dashboard/backend/internal/audit/domain"
	membershipdomain "crm-dashboard/backend/internal/membership/domain"
	"crm-dashboard/backend/internal/platform/rbac"
	"crm-dashboard/backend/internal/security"
	sessiondomain "crm-dashboard/backend/internal/session/domain"
	"crm-dashboard/backend/internal/telemetry"
	userdomain "crm-dashboard/backend/internal/user/domain"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditReader lists persisted audit entries. *auditrepo.SQLRepository implements it.
type AuditReader interface {
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*auditdomain.AuditLog, error)
}

// requireAdmin re-reads the actor's role from the store.
func (s *AuthService) requireAdmin(ctx context.Context, actor security.Identity) (*membershipdomain.Membership, error) {
	m, err := rbac.RequireOrgAdmin(ctx, s.Memberships, actor.UserID, actor.OrgID)
	switch {
	case errors.Is(err, rbac.ErrNotMember), errors.Is(err, rbac.ErrNotAdmin), errors.Is(err, rbac.ErrUnauthenticated):
		return nil, ErrForbidden
	case err != nil:
		return nil, err
	}
	return m, nil
}

// DeactivateUser disables targetID and revokes all of their sessions. The actor must be owner or
// admin of the organization the target belongs to; only owners may deactivate owners, and nobody
// may deactivate themselves. Returns the number of sessions revoked.
func (s *AuthService) DeactivateUser(ctx context.Context, actor security.Identity, targetID string, meta sessiondomain.RequestMeta) (int64, error) {
	actorMembership, err := s.requireAdmin(ctx, actor)
	if err != nil {
		return 0, err
	}
	if targetID == "" {
		return 0, ErrUserNotFound
	}
	if targetID == actor.UserID {
		return 0, ErrForbidden
	}
	target, err := s.Memberships.GetMembershipByUserAndOrg(ctx, targetID, actor.OrgID)
	if err != nil {
		return 0, fmt.Errorf("load target membership: %w", err)
	}
	if target == nil {
		return 0, ErrUserNotFound
	}
	if target.Role == membershipdomain.RoleOwner && actorMembership.Role != membershipdomain.RoleOwner {
		return 0, ErrForbidden
	}

	var revoked int64
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := s.Users.SetStatus(ctx, targetID, userdomain.UserStatusDisabled)
		if err != nil {
			return fmt.Errorf("disable user: %w", err)
		}
		if !ok {
			return ErrUserNotFound
		}
		revoked, err = s.Sessions.RevokeAllSessions(ctx, targetID)
		return err
	})
	if err != nil {
		return 0, err
	}

	ev := s.event(telemetry.EventUserDeactivated, meta)
	ev.UserID, ev.OrgID = targetID, actor.OrgID
	ev.Reason = "by:" + actor.UserID
	s.succeed(ctx, ev)
	return revoked, nil
}

// SignOutEverywhere revokes every session of the caller, including the current one.
func (s *AuthService) SignOutEverywhere(ctx context.Context, id security.Identity, meta sessiondomain.RequestMeta) (int64, error) {
	n, err := s.Sessions.RevokeAllSessions(ctx, id.UserID)
	if err != nil {
		return 0, err
	}
	ev := s.event(telemetry.EventSessionsRevoked, meta)
	ev.UserID, ev.OrgID = id.UserID, id.OrgID
	s.succeed(ctx, ev)
	return n, nil
}

// RecentAuditLog returns the newest audit entries of the actor's organization.
// limit <= 0 means the default; larger values are capped.
func (s *AuthService) RecentAuditLog(ctx context.Context, actor security.Identity, limit int) ([]*auditdomain.AuditLog, error) {
	if _, err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	if s.Audits == nil {
		return nil, nil
	}
	entries, err := s.Audits.ListByOrg(ctx, actor.OrgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}
