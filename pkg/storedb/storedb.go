// Package storedb opens per-module SQLite databases and applies schema
// migrations. Each module records its applied versions in a shared
// schema_migrations table so independent modules can cohabit one file.
package storedb

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/errdeck/errdeck/internal/errx"
)

// Migration is one versioned schema step. SQL may contain multiple
// statements; the whole step runs inside a single transaction.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// OpenOptions configures Open.
type OpenOptions struct {
	Path       string
	Module     string
	Migrations []Migration
}

// Open opens (creating if needed) the database at opts.Path and brings
// the module's schema up to date.
func Open(opts OpenOptions) (*sql.DB, error) {
	if opts.Path == "" {
		return nil, errx.With(ErrOpen, ": empty path")
	}
	if opts.Module == "" {
		return nil, errx.With(ErrOpen, ": empty module name")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, errx.Wrap(ErrOpen, err)
	}

	db, err := sql.Open("sqlite", opts.Path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errx.Wrap(ErrOpen, err)
	}
	if err := migrate(db, opts.Module, opts.Migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB, module string, migrations []Migration) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  module TEXT NOT NULL,
  version INTEGER NOT NULL,
  name TEXT NOT NULL,
  applied_at TEXT NOT NULL,
  PRIMARY KEY (module, version)
);`)
	if err != nil {
		return errx.Wrap(ErrMigrate, err)
	}

	applied := make(map[int]bool)
	rows, err := db.Query(`SELECT version FROM schema_migrations WHERE module = ?`, module)
	if err != nil {
		return errx.Wrap(ErrMigrate, err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return errx.Wrap(ErrMigrate, err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errx.Wrap(ErrMigrate, err)
	}
	rows.Close()

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	for _, m := range ordered {
		if applied[m.Version] {
			continue
		}
		if err := applyOne(db, module, m); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(db *sql.DB, module string, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return errx.Wrap(ErrMigrate, err)
	}
	if _, err := tx.Exec(m.SQL); err != nil {
		tx.Rollback()
		return errx.With(ErrMigrate, " %s v%d (%s): %w", module, m.Version, m.Name, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (module, version, name, applied_at) VALUES (?, ?, ?, ?)`,
		module, m.Version, m.Name, now,
	); err != nil {
		tx.Rollback()
		return errx.Wrap(ErrMigrate, err)
	}
	if err := tx.Commit(); err != nil {
		return errx.Wrap(ErrMigrate, err)
	}
	return nil
}

// AppliedVersions reports the migration versions recorded for a module,
// ascending. Mostly useful for diagnostics and tests.
func AppliedVersions(db *sql.DB, module string) ([]int, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations WHERE module = ? ORDER BY version`, module)
	if err != nil {
		return nil, errx.Wrap(ErrMigrate, err)
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, errx.Wrap(ErrMigrate, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrMigrate, err)
	}
	return out, nil
}
