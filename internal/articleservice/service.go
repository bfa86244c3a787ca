// Package articleservice coordinates the content tree, the derived indexes,
// rendering, and git integration behind a single application-facing API.
package articleservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aldergrove/arbor/internal/apperr"
	"github.com/aldergrove/arbor/internal/checksum"
	"github.com/aldergrove/arbor/internal/garden"
	"github.com/aldergrove/arbor/internal/gitsync"
	"github.com/aldergrove/arbor/internal/index"
	"github.com/aldergrove/arbor/internal/models"
	"github.com/aldergrove/arbor/internal/parser"
	"github.com/aldergrove/arbor/internal/render"
	"github.com/aldergrove/arbor/internal/storage"
)

// ArticleDetail is the full representation of an article.
type ArticleDetail struct {
	Garden        string             `json:"garden,omitempty"`
	Slug          string             `json:"slug"`
	URL           string             `json:"url"`
	Path          string             `json:"path"`
	Title         string             `json:"title"`
	Description   string             `json:"description,omitempty"`
	Content       string             `json:"content"`
	HTML          string             `json:"html,omitempty"`
	Checksum      string             `json:"checksum"`
	Tags          []string           `json:"tags"`
	Status        string             `json:"status"`
	CreatedDate   string             `json:"created_date,omitempty"`
	PublishedDate string             `json:"published_date,omitempty"`
	UpdatedDate   string             `json:"updated_date,omitempty"`
	Links         []index.Resolution `json:"links,omitempty"`
	Backlinks     []string           `json:"backlinks"`
}

// ArticleListItem is a lightweight item in a list response.
type ArticleListItem struct {
	Garden      string   `json:"garden,omitempty"`
	Slug        string   `json:"slug"`
	URL         string   `json:"url"`
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	UpdatedDate string   `json:"updated_date,omitempty"`
}

// Service coordinates storage, index, render, and git operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	coord    index.Coordinator
	resolver *index.Resolver
	renderer *render.Renderer
	gardens  *garden.Manager
	git      *gitsync.Syncer // nil when the content tree is not a repository
	logger   *slog.Logger
}

// NewService creates the article service. git may be nil.
func NewService(store storage.Provider, db *index.DB, coord index.Coordinator,
	resolver *index.Resolver, renderer *render.Renderer, gardens *garden.Manager,
	git *gitsync.Syncer, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		db:       db,
		coord:    coord,
		resolver: resolver,
		renderer: renderer,
		gardens:  gardens,
		git:      git,
		logger:   logger,
	}
}

// GetByPath reads an article from the content tree by its logical path and
// renders it.
func (s *Service) GetByPath(_ context.Context, path string) (*ArticleDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildDetail(path, data)
}

// GetBySlug looks up an article by its (garden, slug) cache key. Use an
// empty garden for root pages.
func (s *Service) GetBySlug(ctx context.Context, gardenSlug, slug string) (*ArticleDetail, error) {
	row, err := s.db.FindBySlug(gardenSlug, slug)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.ErrNotFound
	}
	return s.GetByPath(ctx, row.FilePath)
}

// Create writes a new article, indexes it, and commits the change.
func (s *Service) Create(_ context.Context, path string, content []byte) (*ArticleDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if _, err := parser.Parse(content); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.afterWrite(path); err != nil {
		return nil, err
	}
	return s.buildDetail(path, content)
}

// Update writes updated content with optimistic concurrency: when ifMatch is
// non-empty it must equal the checksum of the stored content.
func (s *Service) Update(_ context.Context, path string, content []byte, ifMatch string) (*ArticleDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if _, err := parser.Parse(content); err != nil {
		return nil, err
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.afterWrite(path); err != nil {
		return nil, err
	}
	return s.buildDetail(path, content)
}

// Delete removes an article from the content tree and the indexes.
func (s *Service) Delete(_ context.Context, path string) error {
	if _, err := s.store.Read(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.store.Delete(path); err != nil {
		return err
	}
	if err := s.coord.NotifyDeleted(path); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrIndexUpdate, err)
	}
	s.commit([]string{path}, "Delete "+path)
	return nil
}

// afterWrite pushes the change into the indexes and commits it. The file is
// already on disk; an index failure is reported as ErrIndexUpdate so callers
// can distinguish it from a failed save.
func (s *Service) afterWrite(path string) error {
	if err := s.coord.NotifyChanged(path); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrIndexUpdate, err)
	}
	s.commit([]string{path}, "Update "+path)
	return nil
}

// commit auto-commits content changes when git integration is active.
// Failures are logged and swallowed; the save already succeeded.
func (s *Service) commit(paths []string, message string) {
	if s.git == nil {
		return
	}
	if err := s.git.AutoCommit(paths, message); err != nil {
		s.logger.Warn("autocommit failed",
			slog.String("message", message),
			slog.String("error", err.Error()))
	}
}

// Gardens lists the configured gardens.
func (s *Service) Gardens(_ context.Context) ([]models.Garden, error) {
	return s.gardens.List()
}

// CreateGarden creates a new garden directory with its config.
func (s *Service) CreateGarden(_ context.Context, slug, title, description string) (garden.Config, error) {
	if s.gardens.Exists(slug) {
		return garden.Config{}, apperr.ErrAlreadyExists
	}
	return s.gardens.Create(slug, title, description)
}

// Recent returns the most recently updated published articles.
func (s *Service) Recent(_ context.Context, limit int) ([]ArticleListItem, error) {
	rows, err := s.db.Recent(limit)
	if err != nil {
		return nil, err
	}
	return listItems(rows), nil
}

// ListGarden returns a garden's articles, optionally including drafts.
func (s *Service) ListGarden(_ context.Context, gardenSlug string, includeDrafts bool) ([]ArticleListItem, error) {
	rows, err := s.db.ListGarden(gardenSlug, includeDrafts)
	if err != nil {
		return nil, err
	}
	return listItems(rows), nil
}

// Search delegates full-text search to the index, optionally scoped to one
// garden.
func (s *Service) Search(_ context.Context, query, gardenSlug string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, gardenSlug, limit)
}

// Resolve resolves a wikilink token relative to currentGarden.
func (s *Service) Resolve(_ context.Context, token, currentGarden string) (index.Resolution, error) {
	return s.resolver.Resolve(token, currentGarden)
}

// Stats reports index statistics plus the coordinator mode.
func (s *Service) Stats(_ context.Context) (index.Stats, string, error) {
	stats, err := s.db.Stats()
	return stats, s.coord.Mode(), err
}

// Reconcile triggers index reconciliation.
func (s *Service) Reconcile(ctx context.Context, force bool) (index.ReconcileResult, error) {
	return s.coord.Reconcile(ctx, force)
}

// History returns the git history of one article. Without git integration
// the history is empty.
func (s *Service) History(_ context.Context, path string, limit int) ([]gitsync.Commit, error) {
	if s.git == nil {
		return nil, nil
	}
	return s.git.FileHistory(path, limit)
}

func (s *Service) buildDetail(path string, data []byte) (*ArticleDetail, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	canonical := parser.CanonicalPath(path)
	gardenSlug, rest := parser.SplitGarden(canonical)
	slug := parser.GenerateSlug(rest)

	title := res.Title
	if title == "" {
		if cached, err := s.db.FindBySlug(gardenSlug, slug); err == nil && cached != nil {
			title = cached.Title
		}
	}

	row := index.ArticleRow{Garden: gardenSlug, Slug: slug, Title: title}
	backlinks, err := s.db.Backlinks(row)
	if err != nil {
		return nil, err
	}

	html, links, err := s.renderer.Render(res.Body, gardenSlug)
	if err != nil {
		return nil, err
	}

	return &ArticleDetail{
		Garden:        gardenSlug,
		Slug:          slug,
		URL:           row.URL(),
		Path:          canonical,
		Title:         title,
		Description:   res.Description,
		Content:       string(data),
		HTML:          html,
		Checksum:      checksum.Sum(data),
		Tags:          nonNilSlice(res.Tags),
		Status:        res.Status,
		CreatedDate:   res.CreatedDate,
		PublishedDate: res.PublishedDate,
		UpdatedDate:   res.UpdatedDate,
		Links:         links,
		Backlinks:     nonNilSlice(backlinks),
	}, nil
}

func listItems(rows []index.ArticleRow) []ArticleListItem {
	items := make([]ArticleListItem, len(rows))
	for i, r := range rows {
		items[i] = ArticleListItem{
			Garden:      r.Garden,
			Slug:        r.Slug,
			URL:         r.URL(),
			Path:        r.FilePath,
			Title:       r.Title,
			Description: r.Description,
			Tags:        nonNilSlice(r.Tags),
			Status:      r.Status,
			UpdatedDate: r.UpdatedDate,
		}
	}
	return items
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
