// Package store implements SQLite-backed persistence, via
// database/sql over github.com/mattn/go-sqlite3: clock state, cron
// schedule entries, recorded messages, and an admin/user table. Handle
// wraps a single *sql.DB explicitly — callers construct and pass it rather
// than reaching a package-level singleton, per the redesign away from the
// source system's class-method/singleton persistence layer.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DbName enumerates the SQLite databases mrcs-control uses, mirroring the
// source system's own per-concern database split.
type DbName string

const (
	DbAdmin      DbName = "Admin"      // users
	DbCron       DbName = "Cron"       // cron and crontab
	DbMessageLog DbName = "MessageLog" // message recorder
	DbTest       DbName = "Test"       // used by unit tests
)

// Handle wraps a single SQLite database connection.
type Handle struct {
	db   *sql.DB
	name DbName
}

// Open opens (creating if absent) the SQLite file backing name at path.
func Open(name DbName, path string) (*Handle, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open %s at %q: %w", name, path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", name, err)
	}
	return &Handle{db: db, name: name}, nil
}

// OpenMemory opens an in-process, non-shared SQLite database, for tests.
func OpenMemory(name DbName) (*Handle, error) {
	return Open(name, ":memory:")
}

// Close releases the underlying connection.
func (h *Handle) Close() error {
	return h.db.Close()
}

// DB exposes the underlying *sql.DB for store implementations in this
// package; it is unexported-by-convention outside package store.
func (h *Handle) DB() *sql.DB { return h.db }
