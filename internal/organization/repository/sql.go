package repository

import (
	"context"
	"database/sql"
	"errors"

	"crm-dashboard/backend/internal/db"
	"crm-dashboard/backend/internal/organization/domain"
)

// SQLRepository stores organizations in the organizations table.
type SQLRepository struct {
	conn *sql.DB
}

// NewSQLRepository returns an organization repository that uses the given db for persistence.
func NewSQLRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// GetOrganizationByID returns the organization for id, or nil if not found.
func (r *SQLRepository) GetOrganizationByID(ctx context.Context, id string) (*domain.Org, error) {
	var o domain.Org
	var status string
	err := db.Conn(ctx, r.conn).QueryRowContext(ctx,
		`SELECT id, name, status, created_at FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrgStatus(status)
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

// CreateOrganization persists the organization. ID must be set.
func (r *SQLRepository) CreateOrganization(ctx context.Context, o *domain.Org) error {
	if err := o.Validate(); err != nil {
		return err
	}
	_, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`INSERT INTO organizations (id, name, status, created_at) VALUES ($1, $2, $3, $4)`,
		o.ID, o.Name, string(o.Status), o.CreatedAt.UTC())
	return err
}
