// Package store is the sqlite persistence layer: promises, logged actions,
// per-user settings, and conversation history. It is consumed by the tool
// implementations and the reminder scheduler; nothing else touches the
// database.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a row does not exist or belongs to another
// user. Callers translate it into user-facing wording.
var ErrNotFound = errors.New("not found")

// Store wraps the sqlite database. All methods are safe for concurrent use;
// database/sql serializes access to the single sqlite connection pool.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds store configuration.
type Config struct {
	// Path is the sqlite database file. ":memory:" is valid for tests.
	Path   string
	Logger zerolog.Logger
}

// Open opens the database, enables WAL mode, and applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger.With().Str("component", "store").Logger(),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.Path).Msg("Store opened")
	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS promises (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			text TEXT NOT NULL,
			hours_per_week REAL NOT NULL DEFAULT 0,
			recurrence TEXT NOT NULL DEFAULT '',
			start_date INTEGER NOT NULL DEFAULT 0,
			end_date INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_promises_user ON promises(user_id);

		CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			promise_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			hours REAL NOT NULL DEFAULT 0,
			logged_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_user ON actions(user_id, logged_at);
		CREATE INDEX IF NOT EXISTS idx_actions_promise ON actions(promise_id);

		CREATE TABLE IF NOT EXISTS settings (
			user_id TEXT PRIMARY KEY,
			reminder_hour INTEGER NOT NULL DEFAULT 21,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			language TEXT NOT NULL DEFAULT 'en',
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_user ON history(user_id, id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
