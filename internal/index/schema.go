// Package index provides the SQLite-backed reference index: a registry of
// records and collections plus the denormalized ref rows derived from
// their content.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	scope      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	title_norm TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	deleted    INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_scope_title ON records(scope, title_norm);
CREATE INDEX IF NOT EXISTS idx_records_scope_url   ON records(scope, url);

CREATE TABLE IF NOT EXISTS collections (
	id      TEXT PRIMARY KEY,
	scope   TEXT NOT NULL,
	slug    TEXT NOT NULL,
	name    TEXT NOT NULL DEFAULT '',
	deleted INTEGER NOT NULL DEFAULT 0,
	UNIQUE(scope, slug)
);

CREATE TABLE IF NOT EXISTS refs (
	source_id  TEXT NOT NULL,
	scope      TEXT NOT NULL,
	kind       TEXT NOT NULL,
	target_key TEXT NOT NULL,
	target_id  TEXT,
	raw_text   TEXT NOT NULL,
	UNIQUE(source_id, kind, target_key)
);

CREATE INDEX IF NOT EXISTS idx_refs_source   ON refs(source_id);
CREATE INDEX IF NOT EXISTS idx_refs_target   ON refs(target_id);
CREATE INDEX IF NOT EXISTS idx_refs_kind_key ON refs(kind, target_key);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
