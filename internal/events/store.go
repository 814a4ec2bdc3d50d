// Package events persists captured executions in an append-only sqlite
// store. Many short-lived reporter processes append concurrently to the same
// file; exactly one reader replays it after the build finishes.
package events

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/majorcontext/earshot/internal/capture"
)

// ErrNotFound is returned when the store file does not exist. Callers use it
// to distinguish a missing capture from an unreadable one.
var ErrNotFound = errors.New("event store not found")

// Store is a handle on one event database.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt
}

// Create opens the store at path for collection, replacing any previous
// content. The session owner calls this once before the build starts.
func Create(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		DROP TABLE IF EXISTS events;
		CREATE TABLE events (
			event_id    INTEGER PRIMARY KEY,
			reporter_id TEXT NOT NULL,
			timestamp   TEXT NOT NULL,
			value       TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating events table: %w", err)
	}
	return newStore(db)
}

// OpenAppend opens an existing store for appending. Reporters call this, add
// one event, and close.
func OpenAppend(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

// OpenRead opens an existing store for replay.
func OpenRead(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening event store %s: %w", path, err)
	}
	// WAL plus a generous busy timeout lets unrelated reporter processes
	// append without cross-process locks in this code.
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 10000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring event store %s: %w", path, err)
	}
	return db, nil
}

func newStore(db *sql.DB) (*Store, error) {
	insert, err := db.Prepare(`INSERT INTO events (reporter_id, timestamp, value) VALUES (?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	return &Store{db: db, insert: insert}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	return s.db.Close()
}

// Append records one event under the given reporter id. Each append is a
// single independent write; interleaving with other writers cannot lose or
// merge records.
func (s *Store) Append(reporterID string, ev capture.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	_, err = s.insert.Exec(reporterID, ev.Timestamp.Format(time.RFC3339Nano), string(value))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// Events returns a cursor over the stored events in storage order. The
// cursor yields a per-row error for records that fail to decode, so one
// corrupt record never aborts the replay.
func (s *Store) Events() (*Cursor, error) {
	rows, err := s.db.Query(`SELECT value FROM events ORDER BY timestamp, event_id`)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return &Cursor{rows: rows}, nil
}

// Cursor iterates over stored events, sql.Rows style.
type Cursor struct {
	rows *sql.Rows
}

// Next advances to the next record. It returns false when the sequence is
// exhausted or the underlying scan fails; check Err afterwards.
func (c *Cursor) Next() bool {
	return c.rows.Next()
}

// Event decodes the current record. A decode error is scoped to this one
// record; the cursor remains usable.
func (c *Cursor) Event() (capture.Event, error) {
	var value string
	if err := c.rows.Scan(&value); err != nil {
		return capture.Event{}, fmt.Errorf("scanning event row: %w", err)
	}
	var ev capture.Event
	if err := json.Unmarshal([]byte(value), &ev); err != nil {
		return capture.Event{}, fmt.Errorf("decoding event record: %w", err)
	}
	if ev.Execution.Executable == "" {
		return capture.Event{}, errors.New("decoding event record: missing executable")
	}
	return ev, nil
}

// Err reports the first error encountered while iterating.
func (c *Cursor) Err() error { return c.rows.Err() }

// Close releases the cursor.
func (c *Cursor) Close() error { return c.rows.Close() }
