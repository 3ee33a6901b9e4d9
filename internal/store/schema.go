// Package store provides the SQLite-backed local store of thoughts with a
// time-ordered index and optional FTS5 full-text search.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is recorded in PRAGMA user_version.
const SchemaVersion = 1

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS thoughts (
	id            INTEGER PRIMARY KEY,
	content       TEXT    NOT NULL,
	timestamp     INTEGER NOT NULL,
	synced        INTEGER NOT NULL DEFAULT 0,
	last_modified INTEGER NOT NULL,
	CHECK (timestamp = id),
	CHECK (length(trim(content)) > 0)
);

CREATE INDEX IF NOT EXISTS idx_thoughts_timestamp ON thoughts(timestamp);
CREATE INDEX IF NOT EXISTS idx_thoughts_unsynced ON thoughts(synced) WHERE synced = 0;
`

// DB wraps a sql.DB with thought-specific operations.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithClock overrides the clock used for new keys and last_modified stamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		db.now = now
	}
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	db := &DB{conn: conn, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("store: schema version %d is newer than supported %d", version, SchemaVersion)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		return fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		return fmt.Errorf("store: apply fts schema: %w", err)
	}
	if version < SchemaVersion {
		if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, SchemaVersion)); err != nil {
			return fmt.Errorf("store: set schema version: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
