// Package db opens the relational store and carries transactions through context.
package db

import (
	"database/sql"
	"errors"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect identifies the SQL backend behind a DSN.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

const sqlitePrefix = "sqlite3://"

// DialectOf returns the dialect for dsn. DSNs prefixed with sqlite3:// are SQLite; anything else is Postgres.
func DialectOf(dsn string) Dialect {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return DialectSQLite
	}
	return DialectPostgres
}

// Open opens a connection pool for dsn and pings it. Caller must call Close when done.
// Postgres uses the pgx stdlib driver; sqlite3://path opens a SQLite file with foreign keys on.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: empty DSN")
	}
	driver, source := "pgx", dsn
	if DialectOf(dsn) == DialectSQLite {
		path := strings.TrimPrefix(dsn, sqlitePrefix)
		if path == "" {
			return nil, errors.New("db: empty SQLite path")
		}
		driver, source = "sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000"
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// SQLite allows one writer; a single connection serializes writes instead of failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
