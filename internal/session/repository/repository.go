package repository

import (
	"context"
	"time"

	"crm-dashboard/backend/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups take token digests, never raw tokens.
// Missing rows are reported as nil or false, not as errors.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	DeleteByAccessTokenHash(ctx context.Context, hash string) (bool, error)
	DeleteByRefreshTokenHash(ctx context.Context, hash string) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	// UpdateTokens replaces the token digests and expiry of session id only while its refresh digest
	// still equals oldRefreshHash. It returns false when the row is gone or another rotation got there first.
	UpdateTokens(ctx context.Context, id, oldRefreshHash, newAccessHash, newRefreshHash string, newExpiry time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
