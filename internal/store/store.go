// Package store persists sessions and their event history in SQLite.
//
// All counter mutation for a single session runs under that session's lock
// and inside one transaction, so a rejected write never leaves a partial
// increment behind. Different sessions never contend.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                    TEXT PRIMARY KEY,
	candidate_name        TEXT NOT NULL,
	interviewer_name      TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL,
	start_time            INTEGER NOT NULL,
	end_time              INTEGER,
	duration              INTEGER NOT NULL DEFAULT 0,
	total_events          INTEGER NOT NULL DEFAULT 0,
	suspicious_events     INTEGER NOT NULL DEFAULT 0,
	focus_lost_count      INTEGER NOT NULL DEFAULT 0,
	face_absent_count     INTEGER NOT NULL DEFAULT 0,
	multiple_faces_count  INTEGER NOT NULL DEFAULT 0,
	phone_detected_count  INTEGER NOT NULL DEFAULT 0,
	book_detected_count   INTEGER NOT NULL DEFAULT 0,
	device_detected_count INTEGER NOT NULL DEFAULT 0,
	drowsiness_count      INTEGER NOT NULL DEFAULT 0,
	integrity_score       INTEGER NOT NULL DEFAULT 100,
	focus_score           INTEGER NOT NULL DEFAULT 100
);

CREATE TABLE IF NOT EXISTS events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	session_id  TEXT NOT NULL REFERENCES sessions(id),
	kind        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	duration    REAL NOT NULL DEFAULT 0,
	confidence  REAL NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	coord_x     INTEGER,
	coord_y     INTEGER,
	resolved    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_events_session_time ON events(session_id, timestamp);
`

// Store is a SQLite-backed session and event store.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-session serialization points
}

// Open opens (creating if needed) the store at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// lockFor returns the mutex serializing mutation of one session. Locks are
// created lazily and kept for the store's lifetime; session counts are
// small enough that reclaiming them is not worth the bookkeeping.
func (s *Store) lockFor(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
