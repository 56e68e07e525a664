package repository

import (
	"context"
	"database/sql"
	"errors"

	"crm-dashboard/backend/internal/db"
	"crm-dashboard/backend/internal/membership/domain"
)

// SQLRepository stores memberships in the memberships table.
type SQLRepository struct {
	conn *sql.DB
}

// NewSQLRepository returns a membership repository that uses the given db for persistence.
func NewSQLRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

const membershipColumns = `id, user_id, org_id, role, created_at`

// GetMembershipByUserAndOrg returns the membership, or nil if the user is not in the org.
func (r *SQLRepository) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID string) (*domain.Membership, error) {
	row := db.Conn(ctx, r.conn).QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	return scanMembership(row)
}

// GetPrimaryMembership returns the user's earliest membership, or nil if the user has none.
func (r *SQLRepository) GetPrimaryMembership(ctx context.Context, userID string) (*domain.Membership, error) {
	row := db.Conn(ctx, r.conn).QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE user_id = $1 ORDER BY created_at ASC, id ASC LIMIT 1`, userID)
	return scanMembership(row)
}

// CreateMembership persists the membership. ID must be set.
func (r *SQLRepository) CreateMembership(ctx context.Context, m *domain.Membership) error {
	_, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`INSERT INTO memberships (`+membershipColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.UserID, m.OrgID, string(m.Role), m.CreatedAt.UTC())
	return err
}

func scanMembership(row *sql.Row) (*domain.Membership, error) {
	var m domain.Membership
	var role string
	err := row.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Role = domain.Role(role)
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}
