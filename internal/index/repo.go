package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ArticleRow represents a row in the articles table: the cached metadata
// projection of one Markdown page.
type ArticleRow struct {
	Garden        string
	Slug          string
	Title         string
	FilePath      string
	Checksum      string
	Description   string
	Tags          []string
	Status        string
	CreatedDate   string
	PublishedDate string
	UpdatedDate   string
	LastIndexed   time.Time
}

// URL returns the public path the article is served under.
func (r ArticleRow) URL() string {
	if r.Garden == "" {
		return "/page/" + r.Slug
	}
	return "/garden/" + r.Garden + "/" + r.Slug
}

// SearchResult represents one ranked search hit.
type SearchResult struct {
	URL     string  `json:"url"`
	Garden  string  `json:"garden,omitempty"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

const articleColumns = `garden, slug, title, file_path, checksum, description,
	tags, status, created_date, published_date, updated_date, last_indexed`

// UpsertArticle inserts or replaces an article, its FTS entry, and its
// outgoing wikilink targets within a single transaction. The (garden, slug)
// pair is the cache key; re-upserting replaces the prior generation.
func (db *DB) UpsertArticle(row ArticleRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertArticleTx(tx, row, body, links); err != nil {
		return err
	}
	return tx.Commit()
}

// upsertArticleTx is the transactional core shared by single-article upserts
// and full rebuilds.
func upsertArticleTx(tx *sql.Tx, row ArticleRow, body string, links []string) error {
	tagsJSON, _ := json.Marshal(row.Tags)

	_, err := tx.Exec(`
		INSERT INTO articles (garden, slug, title, file_path, checksum, description,
			tags, status, created_date, published_date, updated_date, body, last_indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(garden, slug) DO UPDATE SET
			title          = excluded.title,
			file_path      = excluded.file_path,
			checksum       = excluded.checksum,
			description    = excluded.description,
			tags           = excluded.tags,
			status         = excluded.status,
			created_date   = excluded.created_date,
			published_date = excluded.published_date,
			updated_date   = excluded.updated_date,
			body           = excluded.body,
			last_indexed   = CURRENT_TIMESTAMP
	`, row.Garden, row.Slug, row.Title, row.FilePath, row.Checksum, row.Description,
		string(tagsJSON), row.Status, row.CreatedDate, row.PublishedDate, row.UpdatedDate, body)
	if err != nil {
		return fmt.Errorf("index: upsert article: %w", err)
	}

	if err := ftsUpsert(tx, row, body); err != nil {
		return err
	}

	return replaceLinks(tx, row.URL(), links)
}

func replaceLinks(tx *sql.Tx, source string, links []string) error {
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer stmt.Close()
	for _, target := range links {
		if _, err := stmt.Exec(source, target); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}
	return nil
}

// DeleteArticle removes an article, its FTS entry, and its outgoing links.
// Deleting a non-existent key is not an error.
func (db *DB) DeleteArticle(garden, slug string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	url := ArticleRow{Garden: garden, Slug: slug}.URL()
	ftsDelete(tx, url)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, url)
	_, _ = tx.Exec(`DELETE FROM articles WHERE garden = ? AND slug = ?`, garden, slug)

	return tx.Commit()
}

// FindBySlug returns the article for (garden, slug), or nil when absent.
func (db *DB) FindBySlug(garden, slug string) (*ArticleRow, error) {
	rows, err := db.queryArticles(`WHERE garden = ? AND slug = ?`, garden, slug)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// FindBySlugAnyGarden returns every article with the given slug, in
// deterministic (garden, slug) order.
func (db *DB) FindBySlugAnyGarden(slug string) ([]ArticleRow, error) {
	return db.queryArticles(`WHERE slug = ? ORDER BY garden, slug`, slug)
}

// FindByTitle returns articles whose title matches case-insensitively, in
// deterministic (garden, slug) order. Title uniqueness is not enforced;
// disambiguation is the caller's concern.
func (db *DB) FindByTitle(title string) ([]ArticleRow, error) {
	return db.queryArticles(`WHERE title = ? COLLATE NOCASE ORDER BY garden, slug`, title)
}

// FindByTitleIn is FindByTitle restricted to one garden.
func (db *DB) FindByTitleIn(garden, title string) ([]ArticleRow, error) {
	return db.queryArticles(`WHERE garden = ? AND title = ? COLLATE NOCASE ORDER BY garden, slug`, garden, title)
}

// FindTitleLike returns articles whose title contains the fragment
// (case-insensitive), in deterministic order. Used as the fuzzy fallback
// during link resolution.
func (db *DB) FindTitleLike(fragment string) ([]ArticleRow, error) {
	return db.queryArticles(
		`WHERE title LIKE ? ESCAPE '\' COLLATE NOCASE ORDER BY garden, slug`,
		"%"+escapeLike(fragment)+"%")
}

// FindTitleLikeIn is FindTitleLike restricted to one garden.
func (db *DB) FindTitleLikeIn(garden, fragment string) ([]ArticleRow, error) {
	return db.queryArticles(
		`WHERE garden = ? AND title LIKE ? ESCAPE '\' COLLATE NOCASE ORDER BY garden, slug`,
		garden, "%"+escapeLike(fragment)+"%")
}

// GardenExists reports whether any article is cached under the garden.
func (db *DB) GardenExists(garden string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM articles WHERE garden = ? LIMIT 1`, garden).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: garden exists: %w", err)
	}
	return true, nil
}

// Recent returns the most recently updated published articles.
func (db *DB) Recent(limit int) ([]ArticleRow, error) {
	if limit <= 0 {
		limit = 10
	}
	return db.queryArticles(`
		WHERE status = 'published' AND updated_date != ''
		ORDER BY updated_date DESC, garden, slug LIMIT ?`, limit)
}

// ListGarden returns a garden's articles, newest first. Drafts are included
// only when requested (admin views).
func (db *DB) ListGarden(garden string, includeDrafts bool) ([]ArticleRow, error) {
	if includeDrafts {
		return db.queryArticles(`WHERE garden = ? ORDER BY updated_date DESC, slug`, garden)
	}
	return db.queryArticles(`WHERE garden = ? AND status = 'published' ORDER BY updated_date DESC, slug`, garden)
}

// Count returns the number of cached articles.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// AllSources returns every cached file path with its checksum, for
// change detection during reconciliation.
func (db *DB) AllSources() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file_path, checksum FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("index: all sources: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the URLs of articles whose wikilinks point at the given
// article, matching link tokens against its title, slug, and garden-prefixed
// forms (case-insensitive).
func (db *DB) Backlinks(row ArticleRow) ([]string, error) {
	tokens := []string{
		strings.ToLower(row.Title),
		strings.ToLower(row.Slug),
		strings.ToLower(row.Garden + "/" + row.Title),
		strings.ToLower(row.Garden + "/" + row.Slug),
	}
	rows, err := db.conn.Query(`
		SELECT DISTINCT source FROM links
		WHERE LOWER(target) IN (?, ?, ?, ?) AND source != ?
		ORDER BY source
	`, tokens[0], tokens[1], tokens[2], tokens[3], row.URL())
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) queryArticles(where string, args ...any) ([]ArticleRow, error) {
	rows, err := db.conn.Query(`SELECT `+articleColumns+` FROM articles `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query articles: %w", err)
	}
	defer rows.Close()

	var out []ArticleRow
	for rows.Next() {
		var r ArticleRow
		var tagsJSON string
		if err := rows.Scan(&r.Garden, &r.Slug, &r.Title, &r.FilePath, &r.Checksum,
			&r.Description, &tagsJSON, &r.Status, &r.CreatedDate, &r.PublishedDate,
			&r.UpdatedDate, &r.LastIndexed); err != nil {
			return nil, fmt.Errorf("index: scan article: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			r.Tags = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
