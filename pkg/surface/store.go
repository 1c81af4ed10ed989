package surface

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/entry"
	"github.com/errdeck/errdeck/pkg/storedb"
)

const storeModule = "surface"

// Store is a Surface persisted in SQLite so the aggregated list survives
// across runs and can be read by other processes (the entries command).
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenStore opens (creating if needed) the surface database at path.
func OpenStore(path string) (*Store, error) {
	db, err := storedb.Open(storedb.OpenOptions{
		Path:       path,
		Module:     storeModule,
		Migrations: storeMigrations(),
	})
	if err != nil {
		return nil, errx.Wrap(ErrOpenStore, err)
	}
	return &Store{db: db}, nil
}

func storeMigrations() []storedb.Migration {
	return []storedb.Migration{
		{
			Version: 1,
			Name:    "create_sources_entries",
			SQL: `
CREATE TABLE IF NOT EXISTS sources (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  registered_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
  source_id TEXT NOT NULL,
  key TEXT NOT NULL,
  source TEXT NOT NULL,
  severity TEXT NOT NULL,
  code TEXT,
  message TEXT NOT NULL,
  file TEXT,
  line INTEGER NOT NULL DEFAULT 0,
  col INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  data TEXT,
  PRIMARY KEY (source_id, key)
);
CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);
`,
		},
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RegisterSource registers or reclaims a source ID. Unlike the in-memory
// table, a persisted registration may be left behind by a crashed run, so
// re-registering an existing ID takes it over; previously contributed
// entries stay visible until removed or the source unregisters.
func (s *Store) RegisterSource(id, name string) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sources (id, name, registered_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, errx.Wrap(ErrStoreWrite, err)
	}
	return &storeSource{store: s, id: id}, nil
}

func (s *Store) VisibleEntries(sourceTag string) ([]entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryEntries(`SELECT source, severity, code, message, file, line, col, created_at, data
		FROM entries WHERE source = ? ORDER BY created_at`, sourceTag)
}

// AllEntries returns every persisted entry regardless of source tag.
func (s *Store) AllEntries() ([]entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryEntries(`SELECT source, severity, code, message, file, line, col, created_at, data
		FROM entries ORDER BY created_at`)
}

func (s *Store) queryEntries(query string, args ...any) ([]entry.Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errx.Wrap(ErrStoreQuery, err)
	}
	defer rows.Close()

	var out []entry.Entry
	for rows.Next() {
		var e entry.Entry
		var code, file, createdAt, data sql.NullString
		if err := rows.Scan(&e.Source, &e.Severity, &code, &e.Message, &file, &e.Line, &e.Col, &createdAt, &data); err != nil {
			return nil, errx.Wrap(ErrStoreQuery, err)
		}
		e.Code = code.String
		e.File = file.String
		if createdAt.Valid {
			if ts, err := time.Parse(time.RFC3339Nano, createdAt.String); err == nil {
				e.CreatedAt = ts
			}
		}
		if data.Valid && data.String != "" {
			e.Data = json.RawMessage(data.String)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.Wrap(ErrStoreQuery, err)
	}
	return out, nil
}

type storeSource struct {
	store        *Store
	id           string
	mu           sync.Mutex
	unregistered bool
}

func (src *storeSource) AddEntries(batch []entry.Entry) error {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.unregistered {
		return errx.With(ErrSourceUnregistered, ": %q", src.id)
	}
	s := src.store
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return errx.Wrap(ErrStoreWrite, err)
	}
	for _, e := range batch {
		var data any
		if len(e.Data) > 0 {
			data = string(e.Data)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO entries (source_id, key, source, severity, code, message, file, line, col, created_at, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			src.id, e.Key(), e.Source, string(e.Severity), e.Code, e.Message, e.File, e.Line, e.Col,
			e.CreatedAt.UTC().Format(time.RFC3339Nano), data,
		); err != nil {
			tx.Rollback()
			return errx.Wrap(ErrStoreWrite, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errx.Wrap(ErrStoreWrite, err)
	}
	return nil
}

func (src *storeSource) RemoveEntries(batch []entry.Entry) error {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.unregistered {
		return errx.With(ErrSourceUnregistered, ": %q", src.id)
	}
	s := src.store
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return errx.Wrap(ErrStoreWrite, err)
	}
	for _, e := range batch {
		if _, err := tx.Exec(`DELETE FROM entries WHERE source_id = ? AND key = ?`, src.id, e.Key()); err != nil {
			tx.Rollback()
			return errx.Wrap(ErrStoreWrite, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errx.Wrap(ErrStoreWrite, err)
	}
	return nil
}

func (src *storeSource) Unregister() error {
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.unregistered {
		return errx.With(ErrSourceUnregistered, ": %q", src.id)
	}
	src.unregistered = true
	s := src.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM entries WHERE source_id = ?`, src.id); err != nil {
		return errx.Wrap(ErrStoreWrite, err)
	}
	if _, err := s.db.Exec(`DELETE FROM sources WHERE id = ?`, src.id); err != nil {
		return errx.Wrap(ErrStoreWrite, err)
	}
	return nil
}
