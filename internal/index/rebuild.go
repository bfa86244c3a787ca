package index

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aldergrove/arbor/internal/checksum"
	"github.com/aldergrove/arbor/internal/models"
	"github.com/aldergrove/arbor/internal/parser"
	"github.com/aldergrove/arbor/internal/storage"
)

// RebuildResult reports the outcome of a full rebuild pass.
type RebuildResult struct {
	Indexed   int  `json:"indexed"`
	Failed    int  `json:"failed"`
	Unchanged bool `json:"unchanged,omitempty"`
}

// rebuildAll regenerates both derived stores from the content tree inside a
// single transaction: wipe, re-walk, re-parse, re-insert. The result is a
// pure function of the tree; a file that fails to parse is skipped and
// logged, never fatal to the pass.
//
// With skipUnchanged, a tree whose checksums all match the cache is left
// alone. Forced reconciles must not set it: the fast path trusts the cached
// rows and cannot repair a diverged search index.
func rebuildAll(db *DB, store storage.Provider, logger *slog.Logger, skipUnchanged bool) (RebuildResult, error) {
	metas, err := store.List("")
	if err != nil {
		return RebuildResult{}, fmt.Errorf("index: rebuild list: %w", err)
	}

	if skipUnchanged && treeUnchanged(db, metas) {
		logger.Info("rebuild: tree unchanged, skipped")
		return RebuildResult{Indexed: len(metas), Unchanged: true}, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return RebuildResult{}, fmt.Errorf("index: begin rebuild tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"articles", "links"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return RebuildResult{}, fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return RebuildResult{}, err
	}

	var res RebuildResult
	for _, m := range metas {
		data, readErr := store.Read(m.Path)
		if readErr != nil {
			res.Failed++
			logger.Warn("rebuild: read failed", slog.String("path", m.Path), slog.String("error", readErr.Error()))
			continue
		}
		row, body, links, parseErr := articleFromSource(m.Path, data, m.UpdatedAt)
		if parseErr != nil {
			res.Failed++
			logger.Warn("rebuild: parse failed", slog.String("path", m.Path), slog.String("error", parseErr.Error()))
			continue
		}
		if err := upsertArticleTx(tx, row, body, links); err != nil {
			return RebuildResult{}, err
		}
		res.Indexed++
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaLastBuild, time.Now().Format(time.RFC3339)); err != nil {
		return RebuildResult{}, fmt.Errorf("index: record build time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RebuildResult{}, fmt.Errorf("index: commit rebuild: %w", err)
	}
	logger.Info("rebuild: complete",
		slog.Int("indexed", res.Indexed),
		slog.Int("failed", res.Failed))
	return res, nil
}

// treeUnchanged reports whether every cached source checksum matches the
// listed tree exactly, meaning a rebuild would reproduce the cache as it
// stands. A count mismatch (including files the last pass failed to parse,
// which have no cached row) forces a real rebuild.
func treeUnchanged(db *DB, metas []models.FileMetadata) bool {
	cached, err := db.AllSources()
	if err != nil || len(cached) != len(metas) {
		return false
	}
	for _, m := range metas {
		if cached[parser.CanonicalPath(m.Path)] != m.Checksum {
			return false
		}
	}
	return true
}

// articleFromSource parses raw Markdown into a cache row plus its body and
// outgoing links. The article key is derived from the path: the first path
// element is the garden (empty for root-level pages) and the slug is the
// remainder with page markers stripped.
func articleFromSource(logicalPath string, data []byte, mtime time.Time) (ArticleRow, string, []string, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return ArticleRow{}, "", nil, fmt.Errorf("index %s: %w", logicalPath, err)
	}

	canonical := parser.CanonicalPath(logicalPath)
	gardenSlug, rest := parser.SplitGarden(canonical)
	slug := parser.GenerateSlug(rest)

	title := res.Title
	if title == "" {
		// Untitled files still need a resolvable, non-empty title.
		title = titleFromSlug(path.Base(slug))
	}

	row := ArticleRow{
		Garden:        gardenSlug,
		Slug:          slug,
		Title:         title,
		FilePath:      canonical,
		Checksum:      checksum.Sum(data),
		Description:   res.Description,
		Tags:          res.Tags,
		Status:        res.Status,
		CreatedDate:   res.CreatedDate,
		PublishedDate: res.PublishedDate,
		UpdatedDate:   parser.EffectiveUpdated(res, mtime),
	}
	return row, res.Body, res.Links, nil
}

func titleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
