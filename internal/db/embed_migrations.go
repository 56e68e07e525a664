package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations, one directory per dialect.
// Used by the migrate runner (cmd/migrate and repository tests) to apply migrations.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS

// MigrationDir returns the embedded directory holding migrations for the dialect.
func MigrationDir(d Dialect) string {
	if d == DialectSQLite {
		return "migrations/sqlite"
	}
	return "migrations/postgres"
}
