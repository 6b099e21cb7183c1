package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store owns the SQLite connection and hands out repositories.
type Store struct {
	db  *sql.DB
	seq *sequenceCounter
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps per-connection pragmas in effect and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, seq: seq}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EventRepo returns the LLM event repository.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{db: s.db, seq: s.seq}
}

// RunRepo returns the generation run repository.
func (s *Store) RunRepo() RunRepo {
	return &runRepo{db: s.db, seq: s.seq}
}

// ChunkRepo returns the retrieval index repository.
func (s *Store) ChunkRepo() ChunkRepo {
	return &chunkRepo{db: s.db}
}

// applyPragmas configures SQLite for optimal single-user performance.
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

var schema = []string{
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence      INTEGER NOT NULL,
		timestamp     INTEGER NOT NULL,
		session_id    TEXT    NOT NULL DEFAULT '',
		provider      TEXT    NOT NULL,
		model         TEXT    NOT NULL,
		purpose       TEXT    NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL,
		error_message TEXT    NOT NULL DEFAULT '',
		request_body  TEXT    NOT NULL DEFAULT '',
		response_body TEXT    NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_events_sequence ON llm_request_events(sequence)`,
	`CREATE TABLE IF NOT EXISTS generation_runs (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id           TEXT    NOT NULL UNIQUE,
		sequence         INTEGER NOT NULL,
		timestamp        INTEGER NOT NULL,
		session_id       TEXT    NOT NULL DEFAULT '',
		surface          TEXT    NOT NULL DEFAULT '',
		topic            TEXT    NOT NULL,
		category         TEXT    NOT NULL DEFAULT '',
		requested        INTEGER NOT NULL,
		blocks           INTEGER NOT NULL DEFAULT 0,
		vignettes_before INTEGER NOT NULL DEFAULT 0,
		vignettes_after  INTEGER NOT NULL DEFAULT 0,
		status           TEXT    NOT NULL,
		error_message    TEXT    NOT NULL DEFAULT '',
		latency_ms       INTEGER NOT NULL DEFAULT 0,
		output_chars     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_runs_sequence ON generation_runs(sequence)`,
	`CREATE TABLE IF NOT EXISTS chunks (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		source    TEXT    NOT NULL,
		page      INTEGER NOT NULL DEFAULT 0,
		content   TEXT    NOT NULL,
		embedding BLOB    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS index_meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. MCQGEN_DB environment variable
// 2. $XDG_DATA_HOME/mcqgen/mcqgen.db
// 3. ~/.local/share/mcqgen/mcqgen.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("MCQGEN_DB"); p != "" {
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

	p := filepath.Join(dataHome, "mcqgen", "mcqgen.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
