// Package index maintains the two derived stores of the content tree: a
// relational metadata cache and a full-text search index, both in SQLite
// (FTS5 when compiled with the sqlite_fts5 tag). Neither store is ever
// authoritative; both are rebuildable from the content tree alone.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS articles (
	garden         TEXT NOT NULL DEFAULT '',
	slug           TEXT NOT NULL,
	title          TEXT NOT NULL,
	file_path      TEXT NOT NULL,
	checksum       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '[]',
	status         TEXT NOT NULL DEFAULT 'published',
	created_date   TEXT NOT NULL DEFAULT '',
	published_date TEXT NOT NULL DEFAULT '',
	updated_date   TEXT NOT NULL DEFAULT '',
	last_indexed   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (garden, slug)
);

CREATE INDEX IF NOT EXISTS idx_articles_updated ON articles(updated_date DESC);
CREATE INDEX IF NOT EXISTS idx_articles_file ON articles(file_path);
CREATE INDEX IF NOT EXISTS idx_articles_title ON articles(title COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS links (
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	UNIQUE(source, target)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
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

// SetMeta stores a key/value pair in the meta table.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("index: set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta returns the value for key, or empty string when absent.
func (db *DB) GetMeta(key string) (string, error) {
	var v string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get meta %s: %w", key, err)
	}
	return v, nil
}
