package migrate

import (
	"errors"
	"path/filepath"
	"testing"

	"crm-dashboard/backend/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		err := Run(dsn, "up")
		if err == nil {
			t.Fatalf("Run(%q) should return error", dsn)
		}
		if err.Error() != "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL" {
			t.Errorf("error message = %q", err.Error())
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	testCases := []string{"", "invalid", "both", "UP", "Up"}
	for _, direction := range testCases {
		t.Run(direction, func(t *testing.T) {
			err := Run("sqlite3://"+filepath.Join(t.TempDir(), "x.db"), direction)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", direction)
			}
		})
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	testCases := []struct {
		name string
		dsn  string
	}{
		{"invalid format", "invalid-dsn"},
		{"missing driver", "://localhost/test"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Run(tc.dsn, "up"); err == nil {
				t.Errorf("Run with invalid DSN %q should return error", tc.dsn)
			}
		})
	}
}

func TestRun_SQLiteUpDown(t *testing.T) {
	dsn := "sqlite3://" + filepath.Join(t.TempDir(), "crm.db")

	if err := Run(dsn, "up"); err != nil {
		t.Fatalf("Run up: %v", err)
	}
	// Second up is a no-op and must not surface ErrNoChange.
	if err := Run(dsn, "up"); err != nil {
		t.Fatalf("Run up again: %v", err)
	}

	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, table := range []string{"users", "identities", "organizations", "memberships", "sessions", "audit_logs"} {
		var n int
		if err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
	conn.Close()

	if err := Run(dsn, "down"); err != nil {
		t.Fatalf("Run down: %v", err)
	}
}

func TestErrNoChange(t *testing.T) {
	if ErrNoChange == nil {
		t.Fatal("ErrNoChange should not be nil")
	}
	if !errors.Is(ErrNoChange, ErrNoChange) {
		t.Error("ErrNoChange should be errors.Is compatible")
	}
}
