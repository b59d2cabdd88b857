// Package index stores export snapshots in SQLite, with optional FTS5
// search over document names, tags and aliases.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS exports (
	dataset    TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	documents  INTEGER NOT NULL DEFAULT 0,
	written_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	dataset     TEXT NOT NULL,
	path        TEXT NOT NULL,
	position    INTEGER NOT NULL,
	file_name   TEXT NOT NULL,
	uri         TEXT NOT NULL,
	string_tags TEXT NOT NULL DEFAULT '',
	aliases     TEXT NOT NULL DEFAULT '[]',
	frontmatter TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (dataset, path)
);

CREATE TABLE IF NOT EXISTS links (
	dataset       TEXT NOT NULL,
	source        TEXT NOT NULL,
	position      INTEGER NOT NULL,
	link          TEXT NOT NULL,
	clean_target  TEXT NOT NULL DEFAULT '',
	display_text  TEXT NOT NULL DEFAULT '',
	resolved_path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(dataset, source);
CREATE INDEX IF NOT EXISTS idx_links_resolved ON links(dataset, resolved_path);

CREATE TABLE IF NOT EXISTS backlinks (
	dataset      TEXT NOT NULL,
	target       TEXT NOT NULL,
	source       TEXT NOT NULL,
	display_name TEXT NOT NULL,
	UNIQUE(dataset, target, source)
);

CREATE INDEX IF NOT EXISTS idx_backlinks_target ON backlinks(dataset, target);
`

// DB wraps a sql.DB with snapshot operations.
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
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
