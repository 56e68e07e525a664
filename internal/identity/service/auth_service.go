// Package service implements sign-in, registration, token refresh, sign-out and account
// administration on top of the session manager.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"crm-dashboard/backend/internal/db"
	identitydomain "crm-dashboard/backend/internal/identity/domain"
	"crm-dashboard/backend/internal/logging"
	membershipdomain "crm-dashboard/backend/internal/membership/domain"
	orgdomain "crm-dashboard/backend/internal/organization/domain"
	"crm-dashboard/backend/internal/ratelimit"
	"crm-dashboard/backend/internal/security"
	sessiondomain "crm-dashboard/backend/internal/session/domain"
	sessionservice "crm-dashboard/backend/internal/session/service"
	"crm-dashboard/backend/internal/telemetry"
	userdomain "crm-dashboard/backend/internal/user/domain"
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	SetStatus(ctx context.Context, id string, status userdomain.UserStatus) (bool, error)
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// OrgRepo is the minimal organization repository needed by the auth service.
type OrgRepo interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
	CreateOrganization(ctx context.Context, o *orgdomain.Org) error
}

// MembershipRepo is the minimal membership repository needed by the auth service.
type MembershipRepo interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*membershipdomain.Membership, error)
	GetPrimaryMembership(ctx context.Context, userID string) (*membershipdomain.Membership, error)
	CreateMembership(ctx context.Context, m *membershipdomain.Membership) error
}

// SessionManager is implemented by *sessionservice.Manager.
type SessionManager interface {
	CreateSession(ctx context.Context, id security.Identity, meta sessiondomain.RequestMeta) (*sessiondomain.TokenPair, error)
	RotateRefreshToken(ctx context.Context, oldRefreshToken string, id security.Identity) (*sessiondomain.TokenPair, error)
	RevokeSession(ctx context.Context, accessToken string) (string, error)
	RevokeByRefreshToken(ctx context.Context, refreshToken string) (string, error)
	RevokeAllSessions(ctx context.Context, userID string) (int64, error)
}

// TxRunner runs fn in a transaction carried on ctx. *db.TxManager implements it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LoginThrottle limits failed logins. *ratelimit.LoginThrottle implements it.
type LoginThrottle interface {
	Check(ctx context.Context, email, ip string) error
	RecordFailure(ctx context.Context, email, ip string) error
	Reset(ctx context.Context, email string) error
}

// Deps holds the collaborators of AuthService. Throttle, Audit, Events and Log may be nil.
type Deps struct {
	Users       UserRepo
	Identities  IdentityRepo
	Orgs        OrgRepo
	Memberships MembershipRepo
	Audits      AuditReader
	Sessions    SessionManager
	Tx          TxRunner
	Hasher      *security.Hasher
	Tokens      *security.TokenProvider
	Throttle    LoginThrottle
	// Audit receives every event synchronously; Events receives them in the background.
	Audit  telemetry.EventEmitter
	Events telemetry.EventEmitter
	Log    *logging.Logger
}

// AuthService implements password login, registration, refresh and logout.
type AuthService struct {
	Deps
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(deps Deps) *AuthService {
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	return &AuthService{Deps: deps}
}

// AuthResult is what login and register hand back: the credential pair and who it is for.
type AuthResult struct {
	Tokens *sessiondomain.TokenPair
	User   *userdomain.User
	Org    *orgdomain.Org
	Role   membershipdomain.Role
}

// Identity returns the claims the result's tokens carry.
func (r *AuthResult) Identity() security.Identity {
	return security.Identity{UserID: r.User.ID, Email: r.User.Email, OrgID: r.Org.ID, Role: string(r.Role)}
}

// account is a user together with the organization and role their tokens are scoped to.
type account struct {
	user       *userdomain.User
	org        *orgdomain.Org
	membership *membershipdomain.Membership
}

func (a *account) identity() security.Identity {
	return security.Identity{
		UserID: a.user.ID,
		Email:  a.user.Email,
		OrgID:  a.org.ID,
		Role:   string(a.membership.Role),
	}
}

// loadAccount returns nil when the user is disabled, has no membership, or their organization is suspended.
func (s *AuthService) loadAccount(ctx context.Context, user *userdomain.User) (*account, error) {
	if !user.IsActive() {
		return nil, nil
	}
	m, err := s.Memberships.GetPrimaryMembership(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	org, err := s.Orgs.GetOrganizationByID(ctx, m.OrgID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	if org == nil || org.Status != orgdomain.OrgStatusActive {
		return nil, nil
	}
	return &account{user: user, org: org, membership: m}, nil
}

// ResolveIdentity returns the current identity for userID, or nil when the account is gone or inactive.
// The session manager calls it on every rotation.
func (s *AuthService) ResolveIdentity(ctx context.Context, userID string) (*security.Identity, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, nil
	}
	acc, err := s.loadAccount(ctx, user)
	if err != nil || acc == nil {
		return nil, err
	}
	id := acc.identity()
	return &id, nil
}

// Login authenticates email and password and opens a session.
// Unknown email and wrong password both return ErrInvalidCredentials after comparable work.
func (s *AuthService) Login(ctx context.Context, email, password string, meta sessiondomain.RequestMeta) (*AuthResult, error) {
	email = userdomain.NormalizeEmail(email)
	ev := s.event(telemetry.EventLogin, meta)
	ev.Email = email

	if err := s.checkThrottle(ctx, email, meta.IPAddress); err != nil {
		s.fail(ctx, ev, "rate_limited")
		return nil, err
	}
	if email == "" || password == "" {
		s.loginFailed(ctx, ev, email, meta)
		return nil, ErrInvalidCredentials
	}

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	var ident *identitydomain.Identity
	if user != nil {
		ident, err = s.Identities.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
		if err != nil {
			return nil, fmt.Errorf("load identity: %w", err)
		}
	}
	if ident == nil || ident.PasswordHash == "" {
		s.Hasher.CompareDummy([]byte(password))
		s.loginFailed(ctx, ev, email, meta)
		return nil, ErrInvalidCredentials
	}
	if err := s.Hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		ev.UserID = user.ID
		s.loginFailed(ctx, ev, email, meta)
		return nil, ErrInvalidCredentials
	}

	ev.UserID = user.ID
	acc, err := s.loadAccount(ctx, user)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		s.fail(ctx, ev, "account_disabled")
		return nil, ErrAccountDisabled
	}

	if s.Throttle != nil {
		if err := s.Throttle.Reset(ctx, email); err != nil {
			s.Log.Warn("login throttle reset failed", "error", err)
		}
	}
	pair, err := s.Sessions.CreateSession(ctx, acc.identity(), meta)
	if err != nil {
		return nil, err
	}
	ev.OrgID = acc.org.ID
	s.succeed(ctx, ev)
	return &AuthResult{Tokens: pair, User: acc.user, Org: acc.org, Role: acc.membership.Role}, nil
}

func (s *AuthService) checkThrottle(ctx context.Context, email, ip string) error {
	if s.Throttle == nil {
		return nil
	}
	err := s.Throttle.Check(ctx, email, ip)
	if errors.Is(err, ratelimit.ErrRateLimited) {
		return err
	}
	if err != nil {
		s.Log.Warn("login throttle unavailable, allowing attempt", "error", err)
	}
	return nil
}

func (s *AuthService) loginFailed(ctx context.Context, ev telemetry.Event, email string, meta sessiondomain.RequestMeta) {
	if s.Throttle != nil && email != "" {
		if err := s.Throttle.RecordFailure(ctx, email, meta.IPAddress); err != nil {
			s.Log.Warn("login throttle record failed", "error", err)
		}
	}
	s.fail(ctx, ev, "invalid_credentials")
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	OrganizationName string
}

func (in *RegisterInput) normalize() error {
	in.Email = userdomain.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.OrganizationName = strings.TrimSpace(in.OrganizationName)
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if err := validateName("firstName", in.FirstName, true); err != nil {
		return err
	}
	if err := validateName("lastName", in.LastName, false); err != nil {
		return err
	}
	return validateName("organizationName", in.OrganizationName, false)
}

// Register creates the user, their local identity, a default organization with the user as owner,
// and the first session, all in one transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta sessiondomain.RequestMeta) (*AuthResult, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	hashed, err := s.Hasher.Hash([]byte(in.Password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	orgName := in.OrganizationName
	if orgName == "" {
		orgName = orgdomain.DefaultName(in.FirstName)
	}

	now := s.Tokens.Now()
	user := &userdomain.User{
		ID:        uuid.NewString(),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Status:    userdomain.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	org := &orgdomain.Org{ID: uuid.NewString(), Name: orgName, Status: orgdomain.OrgStatusActive, CreatedAt: now}
	membership := &membershipdomain.Membership{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		OrgID:     org.ID,
		Role:      membershipdomain.RoleOwner,
		CreatedAt: now,
	}
	result := &AuthResult{User: user, Org: org, Role: membership.Role}

	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := s.Users.GetByEmail(ctx, user.Email)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if existing != nil {
			return ErrEmailAlreadyRegistered
		}
		if err := s.Users.Create(ctx, user); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailAlreadyRegistered
			}
			return fmt.Errorf("create user: %w", err)
		}
		if err := s.Identities.Create(ctx, &identitydomain.Identity{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   user.Email,
			PasswordHash: hashed,
			CreatedAt:    now,
		}); err != nil {
			if db.IsUniqueViolation(err) {
				return ErrEmailAlreadyRegistered
			}
			return fmt.Errorf("create identity: %w", err)
		}
		if err := s.Orgs.CreateOrganization(ctx, org); err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		if err := s.Memberships.CreateMembership(ctx, membership); err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		pair, err := s.Sessions.CreateSession(ctx, result.Identity(), meta)
		if err != nil {
			return err
		}
		result.Tokens = pair
		return nil
	})

	ev := s.event(telemetry.EventRegister, meta)
	ev.Email = user.Email
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyRegistered) {
			s.fail(ctx, ev, "email_taken")
		}
		return nil, err
	}
	ev.UserID, ev.OrgID = user.ID, org.ID
	s.succeed(ctx, ev)
	return result, nil
}

// Refresh rotates the pair bound to refreshToken. Errors are the session manager's:
// ErrSessionExpired, ErrSessionNotFound, ErrAccountInactive or ErrPersistence.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta sessiondomain.RequestMeta) (*sessiondomain.TokenPair, error) {
	ev := s.event(telemetry.EventRefresh, meta)
	if refreshToken == "" {
		s.fail(ctx, ev, "missing")
		return nil, sessionservice.ErrSessionNotFound
	}
	claims, err := s.Tokens.VerifyRefresh(refreshToken)
	if errors.Is(err, security.ErrTokenExpired) {
		if _, err := s.Sessions.RevokeByRefreshToken(ctx, refreshToken); err != nil {
			s.Log.Warn("refresh: revoke expired session failed", "error", err)
		}
		s.fail(ctx, ev, "session_expired")
		return nil, sessionservice.ErrSessionExpired
	}
	if err != nil {
		s.fail(ctx, ev, "session_invalid")
		return nil, sessionservice.ErrSessionNotFound
	}

	id := claims.Identity()
	ev.UserID, ev.OrgID = id.UserID, id.OrgID
	pair, err := s.Sessions.RotateRefreshToken(ctx, refreshToken, id)
	switch {
	case err == nil:
		s.succeed(ctx, ev)
		return pair, nil
	case errors.Is(err, sessionservice.ErrSessionExpired):
		s.fail(ctx, ev, "session_expired")
	case errors.Is(err, sessionservice.ErrAccountInactive):
		s.fail(ctx, ev, "account_inactive")
	case errors.Is(err, sessionservice.ErrSessionNotFound):
		s.fail(ctx, ev, "session_invalid")
	}
	return nil, err
}

// Logout revokes whatever session the presented cookies point at. It never fails: revocation
// errors are logged and the client is signed out regardless.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string, meta sessiondomain.RequestMeta) {
	owner, err := s.Sessions.RevokeSession(ctx, accessToken)
	if err != nil {
		s.Log.Warn("logout: revoke by access token failed", "error", err)
	}
	byRefresh, err := s.Sessions.RevokeByRefreshToken(ctx, refreshToken)
	if err != nil {
		s.Log.Warn("logout: revoke by refresh token failed", "error", err)
	}
	if owner == "" {
		owner = byRefresh
	}

	ev := s.event(telemetry.EventLogout, meta)
	s.attributeLogout(ctx, &ev, accessToken, refreshToken, owner)
	s.succeed(ctx, ev)
}

// attributeLogout sets the event subject from a token this server signed, else from the owner of
// the session that was removed. Otherwise the event stays unattributed.
func (s *AuthService) attributeLogout(ctx context.Context, ev *telemetry.Event, accessToken, refreshToken, owner string) {
	if c, err := s.Tokens.VerifyAccess(accessToken); err == nil {
		ev.UserID, ev.OrgID = c.Subject, c.OrgID
		return
	}
	if c, err := s.Tokens.VerifyRefresh(refreshToken); err == nil {
		ev.UserID, ev.OrgID = c.Subject, c.OrgID
		return
	}
	if owner == "" {
		return
	}
	ev.UserID = owner
	m, err := s.Memberships.GetPrimaryMembership(ctx, owner)
	if err != nil {
		s.Log.Warn("logout: load membership for audit failed", "error", err)
		return
	}
	if m != nil {
		ev.OrgID = m.OrgID
	}
}

func (s *AuthService) event(t telemetry.EventType, meta sessiondomain.RequestMeta) telemetry.Event {
	return telemetry.Event{Type: t, IPAddress: meta.IPAddress, UserAgent: meta.UserAgent}
}

func (s *AuthService) succeed(ctx context.Context, ev telemetry.Event) {
	ev.Outcome = telemetry.OutcomeSuccess
	s.publish(ctx, ev)
}

func (s *AuthService) fail(ctx context.Context, ev telemetry.Event, reason string) {
	ev.Outcome = telemetry.OutcomeFailure
	ev.Reason = reason
	s.publish(ctx, ev)
}

func (s *AuthService) publish(ctx context.Context, ev telemetry.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if s.Audit != nil {
		if err := s.Audit.Emit(ctx, ev); err != nil {
			s.Log.Warn("audit emit failed", "event", string(ev.Type), "error", err)
		}
	}
	telemetry.EmitAsync(s.Events, s.Log, ev)
}

func (s *AuthService) now() time.Time {
	if s.Tokens != nil {
		return s.Tokens.Now()
	}
	return time.Now().UTC()
}
