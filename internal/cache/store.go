package cache

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/seaway-data/shiptrace/internal/timeutil"
)

// ErrNotFound reports a cache key with no stored entry.
var ErrNotFound = errors.New("cache entry not found")

// Entry is one persisted cache row.
type Entry struct {
	ID          string
	Key         string
	SourcePath  string
	Blob        []byte
	CreatedAtNs int64
}

// Store persists serialized trajectories keyed by fingerprint in SQLite.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewStore creates a store over an opened cache database. A nil clock uses
// the real one.
func NewStore(db *sql.DB, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{db: db, clock: clock}
}

// Get returns the blob stored under key, or ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM cache_entries WHERE cache_key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return blob, nil
}

// Put stores blob under key, replacing any previous entry. The write runs in
// a transaction so a failure never leaves a partial entry visible.
func (s *Store) Put(key, sourcePath string, blob []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cache_entries (id, cache_key, source_path, blob, created_at_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			blob = excluded.blob,
			source_path = excluded.source_path,
			created_at_ns = excluded.created_at_ns
	`, uuid.New().String(), key, sourcePath, blob, s.clock.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return tx.Commit()
}

// Delete removes the entry under key, if present.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE cache_key = ?`, key)
	return err
}

// DeleteBySource removes every entry computed from the given source path.
// Used by force-regeneration.
func (s *Store) DeleteBySource(sourcePath string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE source_path = ?`, sourcePath)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n)
	return n, err
}
