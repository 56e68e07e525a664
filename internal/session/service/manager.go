// Package service owns the session lifecycle: creating a session at sign-in, rotating its
// token pair on refresh, and revoking it. All state lives in the repository.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"crm-dashboard/backend/internal/security"
	"crm-dashboard/backend/internal/session/domain"
	"crm-dashboard/backend/internal/session/repository"
)

var (
	// ErrSessionNotFound means no record matches the presented token. Already rotated and forged
	// tokens look the same; both force re-authentication.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired means the record was past its expiry; it has been deleted.
	ErrSessionExpired = errors.New("session expired")
	// ErrAccountInactive means the account behind the session is gone or deactivated; the record has been deleted.
	ErrAccountInactive = errors.New("account inactive")
	// ErrPersistence wraps store failures. Safe to retry at the transport layer.
	ErrPersistence = errors.New("session store unavailable")
)

// AccountResolver reloads the current identity for a user at rotation time.
// It returns nil when the account no longer exists or is deactivated.
type AccountResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (*security.Identity, error)
}

// Manager creates, rotates and revokes sessions. It holds no session state of its own.
type Manager struct {
	repo     repository.Repository
	tokens   *security.TokenProvider
	accounts AccountResolver
}

// NewManager returns a Manager over repo. accounts is consulted on every rotation.
func NewManager(repo repository.Repository, tokens *security.TokenProvider, accounts AccountResolver) *Manager {
	return &Manager{repo: repo, tokens: tokens, accounts: accounts}
}

// CreateSession issues a fresh pair for id and persists a record bound to it.
// The record expires with the refresh token.
func (m *Manager) CreateSession(ctx context.Context, id security.Identity, meta domain.RequestMeta) (*domain.TokenPair, error) {
	pair, err := m.issuePair(id)
	if err != nil {
		return nil, err
	}
	now := m.tokens.Now()
	s := &domain.Session{
		ID:               uuid.NewString(),
		UserID:           id.UserID,
		AccessTokenHash:  security.HashToken(pair.AccessToken),
		RefreshTokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt:        pair.RefreshExpiresAt,
		UserAgent:        meta.UserAgent,
		IPAddress:        meta.IPAddress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("%w: create session: %w", ErrPersistence, err)
	}
	return pair, nil
}

// RevokeSession deletes the record whose current access token is accessToken and returns the
// owner's user id. Unknown or already revoked tokens are not an error and return "".
func (m *Manager) RevokeSession(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", nil
	}
	return m.revoke(ctx, security.HashToken(accessToken), m.repo.GetByAccessTokenHash, m.repo.DeleteByAccessTokenHash)
}

// RevokeByRefreshToken deletes the record bound to refreshToken. Idempotent like RevokeSession;
// logout uses it once the access cookie has lapsed.
func (m *Manager) RevokeByRefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", nil
	}
	return m.revoke(ctx, security.HashToken(refreshToken), m.repo.GetByRefreshTokenHash, m.repo.DeleteByRefreshTokenHash)
}

// revoke returns the user id only when this call removed the record.
func (m *Manager) revoke(
	ctx context.Context,
	hash string,
	find func(context.Context, string) (*domain.Session, error),
	remove func(context.Context, string) (bool, error),
) (string, error) {
	s, err := find(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("%w: revoke session: %w", ErrPersistence, err)
	}
	if s == nil {
		return "", nil
	}
	deleted, err := remove(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("%w: revoke session: %w", ErrPersistence, err)
	}
	if !deleted {
		return "", nil
	}
	return s.UserID, nil
}

// RevokeAllSessions deletes every session of userID and returns how many were removed.
func (m *Manager) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := m.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: revoke all sessions: %w", ErrPersistence, err)
	}
	return n, nil
}

// RotateRefreshToken exchanges oldRefreshToken for a new pair. On success the old refresh token
// matches nothing ever again. id is the identity carried by the verified refresh token; the new pair
// carries the account's current identity instead, so role or org changes apply at rotation.
//
// Of several concurrent calls with the same token exactly one succeeds; the rest get ErrSessionNotFound.
func (m *Manager) RotateRefreshToken(ctx context.Context, oldRefreshToken string, id security.Identity) (*domain.TokenPair, error) {
	oldHash := security.HashToken(oldRefreshToken)
	s, err := m.repo.GetByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		return nil, fmt.Errorf("%w: find session: %w", ErrPersistence, err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}

	if s.IsExpired(m.tokens.Now()) {
		if err := m.deleteRecord(ctx, s.ID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	if id.UserID != s.UserID {
		return nil, ErrSessionNotFound
	}

	current, err := m.accounts.ResolveIdentity(ctx, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve account: %w", ErrPersistence, err)
	}
	if current == nil {
		if err := m.deleteRecord(ctx, s.ID); err != nil {
			return nil, err
		}
		return nil, ErrAccountInactive
	}

	pair, err := m.issuePair(*current)
	if err != nil {
		return nil, err
	}
	swapped, err := m.repo.UpdateTokens(ctx, s.ID, oldHash,
		security.HashToken(pair.AccessToken), security.HashToken(pair.RefreshToken), pair.RefreshExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: update session: %w", ErrPersistence, err)
	}
	if !swapped {
		return nil, ErrSessionNotFound
	}
	return pair, nil
}

// ValidateSession reports whether accessToken is still bound to a live record.
// Revocation-sensitive routes call it in addition to verifying the token itself.
func (m *Manager) ValidateSession(ctx context.Context, accessToken string) (bool, error) {
	s, err := m.repo.GetByAccessTokenHash(ctx, security.HashToken(accessToken))
	if err != nil {
		return false, fmt.Errorf("%w: find session: %w", ErrPersistence, err)
	}
	return s != nil && !s.IsExpired(m.tokens.Now()), nil
}

// PurgeExpired deletes all records at or past expiry.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.tokens.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: purge expired: %w", ErrPersistence, err)
	}
	return n, nil
}

func (m *Manager) deleteRecord(ctx context.Context, id string) error {
	if _, err := m.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("%w: delete session: %w", ErrPersistence, err)
	}
	return nil
}

func (m *Manager) issuePair(id security.Identity) (*domain.TokenPair, error) {
	access, ac, err := m.tokens.IssueAccess(id)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, rc, err := m.tokens.IssueRefresh(id)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  ac.ExpiresAtTime(),
		RefreshExpiresAt: rc.ExpiresAtTime(),
	}, nil
}
