package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the reverie SQLite database.
type DB struct {
	*sql.DB
	Path string
}

// openPragmas are applied before migrations on every open. WAL keeps the
// decay worker's writes from blocking search reads; busy_timeout covers the
// remaining writer-writer contention.
var openPragmas = []string{
	"journal_mode=WAL",
	"synchronous=NORMAL",
	"foreign_keys=ON",
	"mmap_size=268435456", // 256MB
	"busy_timeout=5000",
}

// DefaultDBPath returns the default database location, ~/.reverie/reverie.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".reverie", "reverie.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies pragmas, and
// brings the schema up to date.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path)
}

// OpenMemory opens a migrated in-memory database, used by tests.
func OpenMemory() (*DB, error) {
	return open(":memory:")
}

func open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}

	db := &DB{DB: sqlDB, Path: dsn}
	for _, p := range openPragmas {
		if _, err := db.Exec("PRAGMA " + p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("pragma %s: %w", p, err)
		}
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
