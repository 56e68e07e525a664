package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"crm-dashboard/backend/internal/db"
	"crm-dashboard/backend/internal/user/domain"
)

// SQLRepository stores users in the users table. It works against Postgres and SQLite and
// joins the caller's transaction when one is on the context.
type SQLRepository struct {
	conn *sql.DB
}

// NewSQLRepository returns a user repository that uses the given db for persistence.
func NewSQLRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

const userColumns = `id, email, first_name, last_name, status, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := db.Conn(ctx, r.conn).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := db.Conn(ctx, r.conn).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, domain.NormalizeEmail(email))
	return scanUser(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
// A duplicate email surfaces as a unique violation (see db.IsUniqueViolation).
func (r *SQLRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, domain.NormalizeEmail(u.Email), u.FirstName, u.LastName, string(u.Status), u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	return err
}

// SetStatus updates the user's status and updated_at.
func (r *SQLRepository) SetStatus(ctx context.Context, id string, status domain.UserStatus) (bool, error) {
	res, err := db.Conn(ctx, r.conn).ExecContext(ctx,
		`UPDATE users SET status = $1, updated_at = $2 WHERE id = $3`, string(status), time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var status string
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Status = domain.UserStatus(status)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
