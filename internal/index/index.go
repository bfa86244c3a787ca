package index

// ArticleIndex is the read/write surface of the metadata and search index
// consumed by the article service and the HTTP layer.
type ArticleIndex interface {
	UpsertArticle(row ArticleRow, body string, links []string) error
	DeleteArticle(garden, slug string) error
	FindBySlug(garden, slug string) (*ArticleRow, error)
	FindBySlugAnyGarden(slug string) ([]ArticleRow, error)
	FindByTitle(title string) ([]ArticleRow, error)
	FindByTitleIn(garden, title string) ([]ArticleRow, error)
	Search(query, garden string, limit int) ([]SearchResult, error)
	Recent(limit int) ([]ArticleRow, error)
	ListGarden(garden string, includeDrafts bool) ([]ArticleRow, error)
	Backlinks(row ArticleRow) ([]string, error)
	Stats() (Stats, error)
	Close() error
}

var _ ArticleIndex = (*DB)(nil)
