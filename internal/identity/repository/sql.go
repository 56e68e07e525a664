package repository

import (
	"context"
	"database/sql"
	"errors"

	"crm-dashboard/backend/internal/db"
	"crm-dashboard/backend/internal/identity/domain"
)

// SQLRepository stores identities in the identities table.
type SQLRepository struct {
	conn *sql.DB
}

// NewSQLRepository returns an identity repository that uses the given db for persistence.
func NewSQLRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// GetByUserAndProvider returns the user's identity for provider, or nil if none.
func (r *SQLRepository) GetByUserAndProvider(ctx context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	var i domain.Identity
	var p string
	err := db.Conn(ctx, r.conn).QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_id, password_hash, created_at
		   FROM identities WHERE user_id = $1 AND provider = $2`, userID, string(provider)).
		Scan(&i.ID, &i.UserID, &p, &i.ProviderID, &i.PasswordHash, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	i.Provider = domain.IdentityProvider(p)
	i.CreatedAt = i.CreatedAt.UTC()
	return &i, nil
}

// Create persists the identity. ID must be set.
func (r *SQLRepository) Create(ctx context.Context, i *domain.Identity) error {
	_, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_id, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.UserID, string(i.Provider), i.ProviderID, i.PasswordHash, i.CreatedAt.UTC())
	return err
}
