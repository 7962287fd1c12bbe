// Package storage persists per-scan agent status snapshots in SQLite.
// Normalized log entries are never persisted; only the derived health state
// is kept, so status history survives log rotation.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/olegiv/agentwatch-go/internal/ingest"
)

// Storage handles database operations
type Storage struct {
	db *sql.DB
}

// Snapshot is one agent's derived state at one scan.
type Snapshot struct {
	ID            int64
	ScannedAt     time.Time
	AgentName     string
	AgentType     string
	Status        ingest.AgentStatus
	LastExecution time.Time
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute
)

// currentSchemaVersion is the latest schema version.
// Increment this when adding new migrations.
const currentSchemaVersion = 1

// New creates a new storage instance
func New(dbPath string) (*Storage, error) {
	// Create directory if it doesn't exist (0700 for security - owner only)
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with busy timeout to prevent indefinite waits.
	// The _busy_timeout pragma prevents "database is locked" errors by waiting
	dsn := fmt.Sprintf("%s?_busy_timeout=%d", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection to avoid lock contention
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	// Create schema_version table first (tracks migration state)
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	// Run migrations based on current version
	if err := s.migrateSchema(s.getSchemaVersion()); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		return 0 // No version set, needs full migration
	}
	return version
}

// setSchemaVersion updates the schema version
func (s *Storage) setSchemaVersion(version int) error {
	// Delete existing and insert new (simpler than upsert for single row)
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil // Already up to date
	}

	log.Printf("storage: migrating schema from version %d to %d", currentVersion, currentSchemaVersion)

	// Migration 0 -> 1: Create base snapshots table
	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	log.Printf("storage: schema migration completed successfully (now at version %d)", currentSchemaVersion)
	return nil
}

// migrateV1 creates the base snapshots table
func (s *Storage) migrateV1() error {
	log.Printf("storage: running migration v1 - create base tables")

	schema := `
	CREATE TABLE IF NOT EXISTS agent_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scanned_at TEXT NOT NULL,
		agent_name TEXT NOT NULL,
		agent_type TEXT NOT NULL,
		status TEXT NOT NULL,
		last_execution TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scanned_at ON agent_snapshots(scanned_at);
	CREATE INDEX IF NOT EXISTS idx_agent_name ON agent_snapshots(agent_name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveScan persists the descriptor set of one directory scan.
func (s *Storage) SaveScan(scannedAt time.Time, agents []ingest.AgentDescriptor) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO agent_snapshots (scanned_at, agent_name, agent_type, status, last_execution)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, agent := range agents {
		if _, err := stmt.Exec(
			scannedAt.Format(time.RFC3339),
			agent.Name,
			agent.Type,
			string(agent.Status),
			agent.LastExecution.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", agent.Name, err)
		}
	}

	return tx.Commit()
}

// History returns the most recent snapshots for one agent, newest first.
func (s *Storage) History(agentName string, limit int) ([]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, scanned_at, agent_name, agent_type, status, last_execution
		FROM agent_snapshots
		WHERE agent_name = ?
		ORDER BY scanned_at DESC, id DESC
		LIMIT ?
	`, agentName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		var scannedAt, lastExecution, status string
		if err := rows.Scan(&snap.ID, &scannedAt, &snap.AgentName, &snap.AgentType, &status, &lastExecution); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snap.Status = ingest.AgentStatus(status)
		if snap.ScannedAt, err = time.Parse(time.RFC3339, scannedAt); err != nil {
			return nil, fmt.Errorf("failed to parse scanned_at: %w", err)
		}
		if snap.LastExecution, err = time.Parse(time.RFC3339, lastExecution); err != nil {
			return nil, fmt.Errorf("failed to parse last_execution: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// LatestStatuses returns the newest recorded status per agent.
func (s *Storage) LatestStatuses() (map[string]ingest.AgentStatus, error) {
	rows, err := s.db.Query(`
		SELECT agent_name, status
		FROM agent_snapshots
		WHERE id IN (SELECT MAX(id) FROM agent_snapshots GROUP BY agent_name)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	statuses := make(map[string]ingest.AgentStatus)
	for rows.Next() {
		var name, status string
		if err := rows.Scan(&name, &status); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		statuses[name] = ingest.AgentStatus(status)
	}

	return statuses, rows.Err()
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
