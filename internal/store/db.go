package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	db     *sql.DB
	dbOnce sync.Once
	dbErr  error
)

// Open returns the process-wide database handle, initializing it on the
// first call. Later calls ignore path and return the same pool; SQLite
// tolerates a single writer badly enough that one shared pool is the
// only sane shape.
func Open(path string) (*sql.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = open(path)
	})
	return db, dbErr
}

func open(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_journal=WAL&_busy_timeout=10000"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := createSchema(conn); err != nil {
		return nil, err
	}

	return conn, nil
}

// OpenEphemeral opens a fresh in-memory database outside the singleton.
// Tests use it so each test gets isolated state. The named shared-cache
// DSN makes every pooled connection see the same database; a plain
// ":memory:" path would give each connection its own empty one.
func OpenEphemeral() (*sql.DB, error) {
	return open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
}

func createSchema(conn *sql.DB) error {
	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		external_id TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		image_url TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := conn.Exec(createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	createRecordsTable := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount REAL NOT NULL,
		text TEXT NOT NULL,
		category TEXT NOT NULL,
		date TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := conn.Exec(createRecordsTable); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}

	createRecordsIndex := `
	CREATE INDEX IF NOT EXISTS idx_records_user_date ON records(user_id, date);
	`
	if _, err := conn.Exec(createRecordsIndex); err != nil {
		return fmt.Errorf("create records index: %w", err)
	}

	return nil
}
