package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Journal holds the local event database and provides repository access.
type Journal struct {
	db *sql.DB
}

// Open creates a Journal backed by the SQLite database at dsn.
// It applies recommended pragmas and creates the schema.
func Open(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (j *Journal) DB() *sql.DB {
	return j.db
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// EventRepo returns an EventRepo backed by this journal.
func (j *Journal) EventRepo() EventRepo {
	return &eventRepo{db: j.db}
}

// SessionRepo returns a SessionRepo backed by this journal.
func (j *Journal) SessionRepo() SessionRepo {
	return &sessionRepo{db: j.db}
}

// applyPragmas configures SQLite for single-user client use.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sequence INTEGER NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			kind TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			thread_id TEXT NOT NULL DEFAULT '',
			op TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL DEFAULT 1,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_sequence ON events (sequence)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events (session_id)`,
		`CREATE TABLE IF NOT EXISTS session_snapshots (
			session_id TEXT PRIMARY KEY,
			record_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			block_index INTEGER NOT NULL DEFAULT 0,
			total_blocks INTEGER NOT NULL DEFAULT 0,
			attempted INTEGER NOT NULL DEFAULT 0,
			mastery REAL NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS global_sequence (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			next_val INTEGER NOT NULL DEFAULT 1
		)`,
		`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. TUTORLOOP_DB environment variable
// 2. $XDG_DATA_HOME/tutorloop/tutorloop.db
// 3. ~/.local/share/tutorloop/tutorloop.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("TUTORLOOP_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "tutorloop", "tutorloop.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
