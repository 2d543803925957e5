// Package store keeps records in SQLite with optional FTS5 search over names
// and payloads.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/codestash/internal/payload"
)

// SchemaVersion is the latest schema version, kept in PRAGMA user_version.
const SchemaVersion = 2

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	payload    TEXT NOT NULL DEFAULT '',
	symbology  TEXT NOT NULL,
	image      BLOB,
	favorite   INTEGER NOT NULL DEFAULT 0,
	revision   INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_favorite ON records(favorite);
`

// v2: optimistic locking, persisted render failures and the payload class
// used by the content filter.
const schemaV2SQL = `
ALTER TABLE records ADD COLUMN version INTEGER NOT NULL DEFAULT 1;
ALTER TABLE records ADD COLUMN failed_revision INTEGER NOT NULL DEFAULT 0;
ALTER TABLE records ADD COLUMN content TEXT NOT NULL DEFAULT 'plain_text';
CREATE INDEX IF NOT EXISTS idx_records_content ON records(content);
`

// DB wraps a sql.DB with record operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
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
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

func migrate(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}
	if version < 1 {
		if _, err := conn.Exec(coreSchemaSQL); err != nil {
			return fmt.Errorf("store: apply core schema: %w", err)
		}
		if err := setSchemaVersion(conn, 1); err != nil {
			return err
		}
	}
	if version < 2 {
		if _, err := conn.Exec(schemaV2SQL); err != nil {
			return fmt.Errorf("store: migration 2: %w", err)
		}
		if err := backfillContent(conn); err != nil {
			return err
		}
		if err := setSchemaVersion(conn, 2); err != nil {
			return err
		}
	}
	return nil
}

func setSchemaVersion(conn *sql.DB, v int) error {
	if _, err := conn.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, v)); err != nil {
		return fmt.Errorf("store: set schema version: %w", err)
	}
	return nil
}

// backfillContent classifies rows written before the content column existed.
func backfillContent(conn *sql.DB) error {
	rows, err := conn.Query(`SELECT id, payload FROM records`)
	if err != nil {
		return fmt.Errorf("store: backfill content: %w", err)
	}
	kinds := make(map[string]string)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			rows.Close()
			return fmt.Errorf("store: backfill content: %w", err)
		}
		if k := contentOf(data); k != payload.PlainText.String() {
			kinds[id] = k
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: backfill content: %w", err)
	}
	for id, k := range kinds {
		if _, err := conn.Exec(`UPDATE records SET content = ? WHERE id = ?`, k, id); err != nil {
			return fmt.Errorf("store: backfill content: %w", err)
		}
	}
	return nil
}

func contentOf(data string) string { return payload.Classify(data).Kind.String() }

// PingContext checks that the database is reachable.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
