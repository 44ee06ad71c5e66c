// Package history persists session activity to SQLite: one row per
// session, an append-only event log, and per-command outcomes. The store
// is informational; agent behavior never depends on it.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	workspace  TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS command_results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	phase      INTEGER NOT NULL,
	action     TEXT NOT NULL,
	target     TEXT NOT NULL,
	ok         INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_commands_session ON command_results(session_id);
`

// Event kinds written by the session driver and controller.
const (
	EventSessionStart = "session_start"
	EventUserRequest  = "user_request"
	EventIntent       = "intent"
	EventPlanning     = "planning"
	EventPhaseResult  = "phase_result"
	EventFinalStatus  = "final_status"
	EventSuggestion   = "suggestion"
	EventCancelled    = "cancelled"
)

// Store is a SQLite-backed session event log.
type Store struct {
	db *sql.DB
}

// Event is one logged occurrence within a session.
type Event struct {
	ID        int64
	SessionID string
	Kind      string
	Detail    string
	CreatedAt time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Single-writer agent; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession records a new session row and its start event.
func (s *Store) StartSession(id, workspace string) error {
	now := time.Now().UTC()
	if _, err := s.db.Exec(
		`INSERT INTO sessions (id, workspace, started_at) VALUES (?, ?, ?)`,
		id, workspace, now,
	); err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	return s.RecordEvent(id, EventSessionStart, workspace)
}

// EndSession stamps the session end time.
func (s *Store) EndSession(id string) error {
	if _, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	); err != nil {
		return fmt.Errorf("failed to record session end: %w", err)
	}
	return nil
}

// RecordEvent appends an event to the session log.
func (s *Store) RecordEvent(sessionID, kind, detail string) error {
	if _, err := s.db.Exec(
		`INSERT INTO events (session_id, kind, detail, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, kind, detail, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// RecordCommand appends one command outcome.
func (s *Store) RecordCommand(sessionID string, phase int, action, target string, ok bool, kind, message string) error {
	okInt := 0
	if ok {
		okInt = 1
	}
	if _, err := s.db.Exec(
		`INSERT INTO command_results (session_id, phase, action, target, ok, kind, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, phase, action, target, okInt, kind, message, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record command result: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events for a session, newest first.
func (s *Store) RecentEvents(sessionID string, limit int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, kind, detail, created_at
		 FROM events WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CommandStats summarizes command outcomes for a session.
type CommandStats struct {
	Total     int
	Succeeded int
}

// SessionCommandStats returns totals for the session's commands.
func (s *Store) SessionCommandStats(sessionID string) (CommandStats, error) {
	var stats CommandStats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(ok), 0) FROM command_results WHERE session_id = ?`,
		sessionID,
	).Scan(&stats.Total, &stats.Succeeded)
	if err != nil {
		return CommandStats{}, fmt.Errorf("failed to query command stats: %w", err)
	}
	return stats, nil
}
