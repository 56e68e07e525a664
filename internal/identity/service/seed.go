package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	identitydomain "crm-dashboard/backend/internal/identity/domain"
	membershipdomain "crm-dashboard/backend/internal/membership/domain"
	orgdomain "crm-dashboard/backend/internal/organization/domain"
	userdomain "crm-dashboard/backend/internal/user/domain"
)

// SeedAccount describes a development account. The password policy is not applied.
// An empty OrgID creates a new organization named OrgName; otherwise the user joins OrgID.
type SeedAccount struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	OrgID     string
	OrgName   string
	Role      membershipdomain.Role
}

// SeedResult reports what Seed found or created.
type SeedResult struct {
	UserID  string
	OrgID   string
	Created bool
}

// Seed creates the account unless a user with the email already exists. No session is opened.
func (s *AuthService) Seed(ctx context.Context, in SeedAccount) (*SeedResult, error) {
	email := userdomain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, errors.New("seed: email and password are required")
	}
	role := in.Role
	if role == "" {
		role = membershipdomain.RoleOwner
	}

	existing, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("seed: load user: %w", err)
	}
	if existing != nil {
		res := &SeedResult{UserID: existing.ID}
		m, err := s.Memberships.GetPrimaryMembership(ctx, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("seed: load membership: %w", err)
		}
		if m != nil {
			res.OrgID = m.OrgID
		}
		return res, nil
	}

	hashed, err := s.Hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, fmt.Errorf("seed: hash password: %w", err)
	}
	now := s.now()
	res := &SeedResult{UserID: uuid.NewString(), OrgID: in.OrgID, Created: true}

	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if res.OrgID == "" {
			name := in.OrgName
			if name == "" {
				name = orgdomain.DefaultName(in.FirstName)
			}
			org := &orgdomain.Org{ID: uuid.NewString(), Name: name, Status: orgdomain.OrgStatusActive, CreatedAt: now}
			if err := s.Orgs.CreateOrganization(ctx, org); err != nil {
				return fmt.Errorf("create organization: %w", err)
			}
			res.OrgID = org.ID
		}
		if err := s.Users.Create(ctx, &userdomain.User{
			ID:        res.UserID,
			Email:     email,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Status:    userdomain.UserStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := s.Identities.Create(ctx, &identitydomain.Identity{
			ID:           uuid.NewString(),
			UserID:       res.UserID,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   email,
			PasswordHash: hashed,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("create identity: %w", err)
		}
		return s.Memberships.CreateMembership(ctx, &membershipdomain.Membership{
			ID:        uuid.NewString(),
			UserID:    res.UserID,
			OrgID:     res.OrgID,
			Role:      role,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", email, err)
	}
	return res, nil
}
