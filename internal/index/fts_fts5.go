//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Column order matters: bm25() weights and snippet() refer to columns by
// position (url, garden, title, body, tags).
func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
			url UNINDEXED,
			garden UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, row ArticleRow, body string) error {
	url := row.URL()
	_, _ = tx.Exec(`DELETE FROM articles_fts WHERE url = ?`, url)
	_, err := tx.Exec(`INSERT INTO articles_fts (url, garden, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		url, row.Garden, row.Title, body, strings.Join(row.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, url string) {
	_, _ = tx.Exec(`DELETE FROM articles_fts WHERE url = ?`, url)
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM articles_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

func ftsDocCount(db *DB) (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM articles_fts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: fts doc count: %w", err)
	}
	return n, nil
}

// Search runs a ranked FTS5 query, optionally scoped to one garden. Title
// matches outrank body matches via bm25 column weights. Queries that do not
// scan as the search grammar fall back to a bare-terms interpretation; a
// query FTS5 itself rejects is retried the same way before giving up.
func (db *DB) Search(query, garden string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	match, ok := rewriteQuery(query)
	if !ok {
		match = fallbackQuery(query)
	}
	if match == "" {
		return nil, nil
	}

	out, err := db.searchMatch(match, garden, limit)
	if err != nil && ok {
		// The grammar accepted it but FTS5 did not; degrade once.
		if fb := fallbackQuery(query); fb != "" && fb != match {
			return db.searchMatch(fb, garden, limit)
		}
	}
	return out, err
}

func (db *DB) searchMatch(match, garden string, limit int) ([]SearchResult, error) {
	q := `
		SELECT url, garden, title,
		       snippet(articles_fts, 3, '<b>', '</b>', '…', 48),
		       bm25(articles_fts, 0, 0, 5.0, 1.0, 2.0) AS rank
		FROM articles_fts
		WHERE articles_fts MATCH ?`
	args := []any{match}
	if garden != "" {
		q += ` AND garden = ?`
		args = append(args, garden)
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.URL, &r.Garden, &r.Title, &r.Snippet, &rank); err != nil {
			return nil, err
		}
		// bm25 ranks are negative with better matches more negative.
		r.Score = -rank
		out = append(out, r)
	}
	return out, rows.Err()
}
