package repository

import (
	"context"
	"database/sql"

	"crm-dashboard/backend/internal/audit/domain"
	"crm-dashboard/backend/internal/db"
)

// SQLRepository stores audit entries in the audit_logs table.
type SQLRepository struct {
	conn *sql.DB
}

// NewSQLRepository returns an audit log repository that uses the given db for persistence.
func NewSQLRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

const auditColumns = `id, org_id, user_id, action, resource, ip, metadata, created_at`

// Create persists the entry. The entry must have ID set.
func (r *SQLRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`INSERT INTO audit_logs (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OrgID, a.UserID, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt.UTC())
	return err
}

// ListByOrg returns the newest entries for orgID. Returns (nil, error) only on database errors.
func (r *SQLRepository) ListByOrg(ctx context.Context, orgID string, limit int) ([]*domain.AuditLog, error) {
	rows, err := db.Conn(ctx, r.conn).QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE org_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.OrgID, &a.UserID, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, &a)
	}
	return out, rows.Err()
}
