package index

import (
	"sort"
	"strings"

	"github.com/aldergrove/arbor/internal/parser"
)

// Resolution is the outcome of resolving one wikilink token. Broken results
// carry the original token so callers can render it flagged instead of as a
// working link.
type Resolution struct {
	Token  string `json:"token"`
	URL    string `json:"url,omitempty"`
	Title  string `json:"title,omitempty"`
	Garden string `json:"garden,omitempty"`
	Broken bool   `json:"broken,omitempty"`
}

// Resolver turns wikilink tokens into destination URLs using the metadata
// cache only; it never touches the filesystem.
//
// Resolution order for a token T (optionally written as garden/T):
//  1. a leading segment naming a known garden restricts every lookup to it
//  2. exact case-insensitive title match
//  3. exact slug match (scoped, then across all gardens)
//  4. fuzzy fallback: case-insensitive title substring match
//
// Ambiguity is broken deterministically: candidates in the reader's current
// garden win, then the lexically lowest (garden, slug) pair.
type Resolver struct {
	db *DB
}

// NewResolver creates a Resolver over the metadata cache.
func NewResolver(db *DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve resolves token relative to currentGarden (empty for root pages).
func (r *Resolver) Resolve(token, currentGarden string) (Resolution, error) {
	target := strings.TrimSpace(token)
	if target == "" {
		return Resolution{Token: token, Broken: true}, nil
	}

	scope, scoped, rest, err := r.splitScope(target)
	if err != nil {
		return Resolution{}, err
	}

	candidates, err := r.lookup(scope, scoped, rest)
	if err != nil {
		return Resolution{}, err
	}
	if len(candidates) == 0 {
		return Resolution{Token: token, Broken: true}, nil
	}

	best := pickCandidate(candidates, currentGarden)
	return Resolution{
		Token:  token,
		URL:    best.URL(),
		Title:  best.Title,
		Garden: best.Garden,
	}, nil
}

// splitScope detects an explicit garden prefix. The segment before the first
// slash only counts as a prefix when the cache knows that garden; otherwise
// the whole token is the lookup target (titles may contain slashes).
func (r *Resolver) splitScope(target string) (scope string, scoped bool, rest string, err error) {
	i := strings.Index(target, "/")
	if i <= 0 {
		return "", false, target, nil
	}
	prefix := target[:i]
	exists, err := r.db.GardenExists(prefix)
	if err != nil {
		return "", false, "", err
	}
	if !exists {
		return "", false, target, nil
	}
	return prefix, true, target[i+1:], nil
}

func (r *Resolver) lookup(scope string, scoped bool, target string) ([]ArticleRow, error) {
	// Exact title.
	rows, err := r.findByTitle(scope, scoped, target)
	if err != nil || len(rows) > 0 {
		return rows, err
	}

	// Exact slug; tokens are slugified first so [[Hello World]] and
	// [[hello-world]] address the same page.
	slug := parser.GenerateSlug(target)
	if scoped {
		row, err := r.db.FindBySlug(scope, slug)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return []ArticleRow{*row}, nil
		}
	} else {
		rows, err = r.db.FindBySlugAnyGarden(slug)
		if err != nil || len(rows) > 0 {
			return rows, err
		}
	}

	// Fuzzy fallback.
	if scoped {
		return r.db.FindTitleLikeIn(scope, target)
	}
	return r.db.FindTitleLike(target)
}

func (r *Resolver) findByTitle(scope string, scoped bool, title string) ([]ArticleRow, error) {
	if scoped {
		return r.db.FindByTitleIn(scope, title)
	}
	return r.db.FindByTitle(title)
}

// pickCandidate applies the documented tie-break: current garden first,
// then lexical (garden, slug). The finders already return (garden, slug)
// order, so a stable partition by garden preference suffices.
func pickCandidate(rows []ArticleRow, currentGarden string) ArticleRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Garden == currentGarden && rows[j].Garden != currentGarden
	})
	return rows[0]
}
