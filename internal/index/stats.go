package index

import (
	"fmt"
	"time"
)

const metaLastBuild = "last_build"

// Stats describes the state of the derived stores, for the admin surface.
type Stats struct {
	Articles  int       `json:"articles"`
	Documents int       `json:"documents"`
	SizeBytes int64     `json:"size_bytes"`
	LastBuild time.Time `json:"last_build,omitzero"`
}

// Stats returns cached-article and search-document counts, the on-disk
// database size, and the time of the last full rebuild.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	var err error

	if s.Articles, err = db.Count(); err != nil {
		return Stats{}, err
	}
	if s.Documents, err = ftsDocCount(db); err != nil {
		return Stats{}, err
	}

	if err := db.conn.QueryRow(`
		SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()
	`).Scan(&s.SizeBytes); err != nil {
		return Stats{}, fmt.Errorf("index: db size: %w", err)
	}

	raw, err := db.GetMeta(metaLastBuild)
	if err != nil {
		return Stats{}, err
	}
	if raw != "" {
		if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			s.LastBuild = t
		}
	}
	return s, nil
}
