package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"tsp-search/internal/database"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "data.db"
	schemaVersion     = 2
	memoryPath        = ":memory:"
)

// migrations holds the statements that bring a schema from version n-1 to n
var migrations = map[int][]string{
	2: {
		`ALTER TABLE runs ADD COLUMN lookup_policy TEXT NOT NULL DEFAULT 'lenient'`,
		`ALTER TABLE runs ADD COLUMN history_record TEXT NOT NULL DEFAULT 'candidate'`,
	},
}

// Store is a SQLite-based data store implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	logger *zap.Logger

	runRepo      database.RunRepository
	settingsRepo database.SettingsRepository
}

var _ database.DataStore = (*Store)(nil)

// New creates a new SQLite store at the specified path. ":memory:" opens a
// private in-memory database.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sqlite")

	if dbPath != memoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Info("opening database", zap.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every pooled connection to :memory: would see its own empty database
	if dbPath == memoryPath {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.runRepo = &runRepository{store: store}
	store.settingsRepo = &settingsRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist, create everything
		return s.createSchema()
	}

	if version < schemaVersion {
		if err := s.runMigrations(version); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (2);

	-- Archived runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		instance_name TEXT NOT NULL,
		city_count INTEGER NOT NULL,
		best_length REAL NOT NULL,
		iterations INTEGER NOT NULL,
		tour TEXT NOT NULL,
		candidate_mode TEXT NOT NULL DEFAULT 'full',
		lookup_policy TEXT NOT NULL DEFAULT 'lenient',
		history_record TEXT NOT NULL DEFAULT 'candidate',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	-- Convergence history per run
	CREATE TABLE IF NOT EXISTS run_history (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		distance REAL NOT NULL,
		PRIMARY KEY (run_id, iteration),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	-- Settings (single row table)
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		tick_millis INTEGER NOT NULL DEFAULT 1000,
		candidate_mode TEXT NOT NULL DEFAULT 'full',
		lookup_policy TEXT NOT NULL DEFAULT 'lenient',
		history_record TEXT NOT NULL DEFAULT 'candidate',
		show_path INTEGER NOT NULL DEFAULT 0
	);
	INSERT OR IGNORE INTO settings (id) VALUES (1);

	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Info("schema initialized", zap.Int("version", schemaVersion))
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	s.logger.Info("migrating schema",
		zap.Int("from", fromVersion),
		zap.Int("to", schemaVersion))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for v := fromVersion + 1; v <= schemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migration to version %d failed: %w", v, err)
			}
		}
	}

	if _, err := tx.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		// Checkpoint WAL before closing
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository accessors
func (s *Store) Runs() database.RunRepository          { return s.runRepo }
func (s *Store) Settings() database.SettingsRepository { return s.settingsRepo }
