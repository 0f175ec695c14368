// Package sqlite persists resolved region lookups so repeated runs do not
// hit the geocoder for coordinates already seen.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// LookupStore implements resolver.Store using modernc.org/sqlite.
type LookupStore struct {
	db *sql.DB
}

// Open opens a SQLite database at dsn, configures WAL mode and applies the
// schema.
func Open(ctx context.Context, dsn string) (*LookupStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection serializes writers and avoids SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &LookupStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS region_lookups (
	key         TEXT PRIMARY KEY,
	code        TEXT NOT NULL,
	resolved_at DATETIME NOT NULL
);
`

func (s *LookupStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Lookup returns the stored region code for key. found is false when the key
// has never been saved.
func (s *LookupStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	var code string
	err := s.db.QueryRowContext(ctx, `SELECT code FROM region_lookups WHERE key = ?`, key).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "sqlite: lookup %s", key)
	}
	return code, true, nil
}

// Save records code for key, replacing any previous value.
func (s *LookupStore) Save(ctx context.Context, key, code string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO region_lookups (key, code, resolved_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET code = excluded.code, resolved_at = excluded.resolved_at`,
		key, code, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save %s", key)
}

// Count returns the number of stored lookups.
func (s *LookupStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM region_lookups`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count lookups")
	}
	return n, nil
}

func (s *LookupStore) Close() error {
	return s.db.Close()
}
