//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; search uses LIKE over the articles table, where
	// the body snapshot is already stored.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ ArticleRow, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsClear(_ *sql.Tx) error { return nil }

func ftsDocCount(db *DB) (int, error) {
	return db.Count()
}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled
// in). The grammar degrades to its bare terms, all of which must match;
// rows matching in the title rank above body-only matches.
func (db *DB) Search(query, garden string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	q := `
		SELECT garden, slug, title, substr(body, 1, 200),
		       CASE WHEN title LIKE ? ESCAPE '\' THEN 2.0 ELSE 1.0 END AS rank
		FROM articles WHERE 1=1`
	args := []any{"%" + escapeLike(terms[0]) + "%"}
	for _, t := range terms {
		q += ` AND (title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`
		like := "%" + escapeLike(t) + "%"
		args = append(args, like, like, like)
	}
	if garden != "" {
		q += ` AND garden = ?`
		args = append(args, garden)
	}
	q += ` ORDER BY rank DESC, garden, slug LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var slug string
		if err := rows.Scan(&r.Garden, &slug, &r.Title, &r.Snippet, &r.Score); err != nil {
			return nil, err
		}
		r.URL = ArticleRow{Garden: r.Garden, Slug: slug}.URL()
		out = append(out, r)
	}
	return out, rows.Err()
}
