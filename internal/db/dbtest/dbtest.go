// Package dbtest provides a migrated SQLite database for repository tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"crm-dashboard/backend/internal/db"
	"crm-dashboard/backend/internal/db/migrate"
)

// OpenSQLite creates a SQLite file in a temp dir, applies all migrations and returns an open pool.
// The pool is closed when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()
	dsn := "sqlite3://" + filepath.Join(t.TempDir(), "test.db")
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
