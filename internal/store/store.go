// Package store persists all agent state in a single SQLite database:
// posts, actions, arm pulls, KPI snapshots, improvement notes, redirects,
// sensed events, persona versions, structured outcomes, and DM logs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"tribune/internal/logging"
)

// Store wraps the SQLite database. A single connection is used; SQLite
// serializes writes anyway and one conn avoids SQLITE_BUSY churn.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the SQLite database at the given path.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Initializing store at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// NORMAL is safe with WAL and much faster than FULL
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized")

	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	postsTable := `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		platform_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		text_hash TEXT NOT NULL,
		topic TEXT,
		intensity INTEGER DEFAULT 0,
		cta_variant TEXT,
		in_reply_to TEXT,
		dry_run BOOLEAN DEFAULT FALSE,
		likes INTEGER DEFAULT 0,
		reposts INTEGER DEFAULT 0,
		replies INTEGER DEFAULT 0,
		quotes INTEGER DEFAULT 0,
		clicks INTEGER DEFAULT 0,
		authority_hits INTEGER DEFAULT 0,
		penalty_score REAL DEFAULT 0,
		j_score REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_posts_hash ON posts(text_hash);
	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_platform_id ON posts(platform, platform_id);
	`

	actionsTable := `
	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		kind TEXT,
		target TEXT,
		text TEXT,
		dm_copy TEXT,
		arms_json TEXT,
		result TEXT NOT NULL,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_actions_type ON actions(type);
	CREATE INDEX IF NOT EXISTS idx_actions_created ON actions(created_at);
	`

	armsTable := `
	CREATE TABLE IF NOT EXISTS arms_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER,
		dimension TEXT NOT NULL,
		arm TEXT NOT NULL,
		reward REAL,
		sampled_prob REAL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_arms_dim ON arms_log(dimension);
	CREATE INDEX IF NOT EXISTS idx_arms_post ON arms_log(post_id);
	CREATE INDEX IF NOT EXISTS idx_arms_created ON arms_log(created_at);
	`

	kpisTable := `
	CREATE TABLE IF NOT EXISTS kpis (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		series TEXT NOT NULL,
		value REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_kpis_series ON kpis(series, created_at);
	`

	notesTable := `
	CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at);
	`

	followersTable := `
	CREATE TABLE IF NOT EXISTS followers_snapshot (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_followers_created ON followers_snapshot(platform, created_at);
	`

	redirectsTable := `
	CREATE TABLE IF NOT EXISTS redirects (
		id TEXT PRIMARY KEY,
		target_url TEXT NOT NULL,
		clicks INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	eventsTable := `
	CREATE TABLE IF NOT EXISTS sensed_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		counts_json TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_created ON sensed_events(created_at);
	`

	personaTable := `
	CREATE TABLE IF NOT EXISTS persona_versions (
		version INTEGER PRIMARY KEY,
		hash TEXT NOT NULL,
		body TEXT NOT NULL,
		note TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	outcomesTable := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_post ON outcomes(post_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_kind ON outcomes(kind, created_at);
	`

	dmTable := `
	CREATE TABLE IF NOT EXISTS dm_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform TEXT NOT NULL,
		recipient TEXT NOT NULL,
		text TEXT NOT NULL,
		dry_run BOOLEAN DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_dm_recipient ON dm_log(recipient, created_at);
	`

	cursorsTable := `
	CREATE TABLE IF NOT EXISTS cursors (
		name TEXT PRIMARY KEY,
		value TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	for _, table := range []string{
		postsTable,
		actionsTable,
		armsTable,
		kpisTable,
		notesTable,
		followersTable,
		redirectsTable,
		eventsTable,
		personaTable,
		outcomesTable,
		dmTable,
		cursorsTable,
	} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store database connection")
	return s.db.Close()
}

// DB returns the underlying SQL database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stats returns row counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{
		"posts", "actions", "arms_log", "kpis", "notes",
		"followers_snapshot", "redirects", "sensed_events",
		"persona_versions", "outcomes", "dm_log",
	}
	for _, table := range tables {
		var count int64
		err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
