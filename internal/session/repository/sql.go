package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crm-dashboard/backend/internal/db"
	"crm-dashboard/backend/internal/session/domain"
)

// SQLRepository stores sessions in the sessions table (Postgres or SQLite).
type SQLRepository struct {
	conn *sql.DB
}

// NewSQLRepository returns a session repository that uses the given db for persistence.
func NewSQLRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

const sessionColumns = `id, user_id, access_token_hash, refresh_token_hash, expires_at, user_agent, ip_address, created_at, updated_at`

// Create persists the session. The session must have ID set.
func (r *SQLRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.AccessTokenHash, s.RefreshTokenHash, s.ExpiresAt.UTC(),
		s.UserAgent, s.IPAddress, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	return err
}

// GetByRefreshTokenHash returns the session whose current refresh token has the digest, or nil.
func (r *SQLRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := db.Conn(ctx, r.conn).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, hash)
	return scanSession(row)
}

// GetByAccessTokenHash returns the session whose current access token has the digest, or nil.
func (r *SQLRepository) GetByAccessTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := db.Conn(ctx, r.conn).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE access_token_hash = $1`, hash)
	return scanSession(row)
}

func (r *SQLRepository) DeleteByAccessTokenHash(ctx context.Context, hash string) (bool, error) {
	return r.deleteOne(ctx, `DELETE FROM sessions WHERE access_token_hash = $1`, hash)
}

func (r *SQLRepository) DeleteByRefreshTokenHash(ctx context.Context, hash string) (bool, error) {
	return r.deleteOne(ctx, `DELETE FROM sessions WHERE refresh_token_hash = $1`, hash)
}

func (r *SQLRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	return r.deleteOne(ctx, `DELETE FROM sessions WHERE id = $1`, id)
}

// DeleteAllForUser removes every session of the user and returns how many were removed.
func (r *SQLRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := db.Conn(ctx, r.conn).ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateTokens is a compare-and-swap on refresh_token_hash: the WHERE clause carries the old digest,
// so of two concurrent rotations of the same token exactly one updates a row.
func (r *SQLRepository) UpdateTokens(ctx context.Context, id, oldRefreshHash, newAccessHash, newRefreshHash string, newExpiry time.Time) (bool, error) {
	res, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`UPDATE sessions
		    SET access_token_hash = $1, refresh_token_hash = $2, expires_at = $3, updated_at = $4
		  WHERE id = $5 AND refresh_token_hash = $6`,
		newAccessHash, newRefreshHash, newExpiry.UTC(), time.Now().UTC(), id, oldRefreshHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SQLRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.Conn(ctx, r.conn).ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLRepository) deleteOne(ctx context.Context, query string, arg string) (bool, error) {
	res, err := db.Conn(ctx, r.conn).ExecContext(ctx, query, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.AccessTokenHash, &s.RefreshTokenHash, &s.ExpiresAt,
		&s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
