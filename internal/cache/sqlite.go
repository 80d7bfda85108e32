package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/cryptodesk/internal/db"
)

// SQLiteStore keeps the cache in a single SQLite file, one row per id.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts options
	log  zerolog.Logger
	mu   sync.Mutex
}

// OpenSQLiteStore opens (or creates) the SQLite cache at path.
func OpenSQLiteStore(path string, log zerolog.Logger, opts ...Option) (*SQLiteStore, error) {
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to init cache schema: %w", err)
	}
	return &SQLiteStore{
		db:   database,
		path: path,
		opts: buildOptions(opts),
		log:  log.With().Str("component", "cache").Str("backend", "sqlite").Logger(),
	}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Lookup implements Store. Query or decode failures degrade to misses.
func (s *SQLiteStore) Lookup(ids []string) ([]Entry, []string) {
	all := map[string]Entry{}
	if len(ids) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, 0, len(ids))
		for _, id := range ids {
			args = append(args, id)
		}
		rows, err := s.db.Query(`SELECT id, payload FROM market_cache WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			s.log.Warn().Err(&IOError{Op: "read", Path: s.path, Err: err}).Msg("treating cache as empty")
			return split(all, ids, s.opts.now())
		}
		defer rows.Close()
		for rows.Next() {
			var id, payload string
			if err := rows.Scan(&id, &payload); err != nil {
				continue
			}
			var e Entry
			if err := json.Unmarshal([]byte(payload), &e); err != nil {
				s.log.Debug().Err(err).Str("id", id).Msg("skipping malformed cache entry")
				continue
			}
			if e.ID == "" {
				e.ID = id
			}
			all[id] = e
		}
	}
	return split(all, ids, s.opts.now())
}

// Upsert implements Store. All entries are written in one transaction.
func (s *SQLiteStore) Upsert(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	defer tx.Rollback()

	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return &IOError{Op: "encode", Path: s.path, Err: err}
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO market_cache (id, payload, price_timestamp, updated_at) VALUES (?, ?, ?, unixepoch())`,
			e.ID, string(payload), e.PriceTimestamp.Unix(),
		); err != nil {
			return &IOError{Op: "write", Path: s.path, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &IOError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
