package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row addressed by id does not exist
var ErrNotFound = errors.New("record not found")

const dbFileName = "karten_melder.db"

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies pool limits to db
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (and migrates) the SQLite database inside dataDir
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 10, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized",
		"path", dbPath,
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			phone_number TEXT NOT NULL,
			company_name TEXT,
			email TEXT,
			zip_code TEXT NOT NULL,
			city_name TEXT NOT NULL,
			description TEXT,
			nerv_score INTEGER NOT NULL,
			created_at INTEGER NOT NULL -- unix millis
		)`,

		`CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			name TEXT,
			email TEXT,
			message TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		// user-contributed zip codes overlaying the built-in table
		`CREATE TABLE IF NOT EXISTS custom_postal_codes (
			zip_code TEXT PRIMARY KEY,
			city_name TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL, -- JSON
			updated_at INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_city ON reports(city_name)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_phone ON reports(phone_number)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_report": `INSERT INTO reports (
			id, phone_number, company_name, email, zip_code, city_name, description, nerv_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"update_report": `UPDATE reports SET
			phone_number = ?, company_name = ?, email = ?, zip_code = ?, city_name = ?,
			description = ?, nerv_score = ?
			WHERE id = ?`,

		"get_report": `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`,

		"insert_feedback": `INSERT INTO feedback (id, name, email, message, created_at) VALUES (?, ?, ?, ?, ?)`,

		"get_feedback": `SELECT id, name, email, message, created_at FROM feedback WHERE id = ?`,

		"upsert_postal_code": `INSERT INTO custom_postal_codes (zip_code, city_name, created_at) VALUES (?, ?, ?)
			ON CONFLICT(zip_code) DO UPDATE SET city_name = excluded.city_name`,

		"get_postal_code": `SELECT city_name FROM custom_postal_codes WHERE zip_code = ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the prepared statements and the database connection
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
