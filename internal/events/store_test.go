package events

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/majorcontext/earshot/internal/capture"
)

func countEvents(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		t.Fatalf("counting events: %v", err)
	}
	return n
}

func testEvent(pid int, executable string) capture.Event {
	return capture.Event{
		PID:       pid,
		Timestamp: time.Now().UTC(),
		Execution: capture.Execution{
			Executable: executable,
			Arguments:  []string{filepath.Base(executable), "-c", "main.c"},
			WorkingDir: "/src",
		},
	}
}

func TestStore_AppendRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	store, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.Append("rpt_1", testEvent(100+i, "/usr/bin/cc")); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer reader.Close()

	cur, err := reader.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	defer cur.Close()

	var pids []int
	for cur.Next() {
		ev, err := cur.Event()
		if err != nil {
			t.Fatalf("Event: %v", err)
		}
		pids = append(pids, ev.PID)
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	if len(pids) != 3 {
		t.Fatalf("read %d events, want 3", len(pids))
	}
	// Within one process, storage order is insertion order.
	for i, pid := range pids {
		if pid != 100+i {
			t.Errorf("pids = %v, want ascending from 100", pids)
			break
		}
	}
}

func TestStore_CreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	store, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Append("rpt_1", testEvent(1, "/usr/bin/cc")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store.Close()

	store, err = Create(path)
	if err != nil {
		t.Fatalf("Create (second): %v", err)
	}
	store.Close()

	if n := countEvents(t, path); n != 0 {
		t.Errorf("events after re-create = %d, want 0", n)
	}
}

func TestStore_OpenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.db")

	if _, err := OpenRead(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("OpenRead error = %v, want ErrNotFound", err)
	}
	if _, err := OpenAppend(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("OpenAppend error = %v, want ErrNotFound", err)
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	store, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.Close()

	// Each goroutine stands in for an unrelated reporter process: its own
	// handle, one append, close.
	const writers = 20
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			s, err := OpenAppend(path)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Append(fmt.Sprintf("rpt_%d", i), testEvent(1000+i, "/usr/bin/cc"))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent append: %v", err)
	}

	if n := countEvents(t, path); n != writers {
		t.Errorf("stored events = %d, want %d", n, writers)
	}
}

func TestStore_CorruptRecordSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	store, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Append("rpt_1", testEvent(1, "/usr/bin/cc")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	store.Close()

	// A reporter killed mid-write leaves a record the reader cannot decode.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO events (reporter_id, timestamp, value) VALUES ('rpt_x', '2026-01-01T00:00:00Z', '{"trunc')`,
	); err != nil {
		t.Fatalf("inserting corrupt row: %v", err)
	}
	db.Close()

	reader, err := OpenRead(path)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer reader.Close()

	cur, err := reader.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	defer cur.Close()

	var valid, corrupt int
	for cur.Next() {
		if _, err := cur.Event(); err != nil {
			corrupt++
			continue
		}
		valid++
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	if valid != 1 || corrupt != 1 {
		t.Errorf("valid = %d, corrupt = %d, want 1 and 1", valid, corrupt)
	}
}
