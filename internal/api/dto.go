package api

import (
	"github.com/aldergrove/arbor/internal/articleservice"
	"github.com/aldergrove/arbor/internal/index"
)

// CreateArticleRequest is the request body for creating an article.
type CreateArticleRequest struct {
	Path    string `json:"path" example:"blog/growing-basil.md" validate:"required"`
	Content string `json:"content" example:"---\ntitle: Growing Basil\n---\nBody." validate:"required"`
}

// UpdateArticleRequest is the request body for updating an article.
type UpdateArticleRequest struct {
	Content string `json:"content" example:"---\ntitle: Growing Basil\n---\nUpdated." validate:"required"`
}

// CreateGardenRequest is the request body for creating a garden.
type CreateGardenRequest struct {
	Slug        string `json:"slug" example:"herbs" validate:"required"`
	Title       string `json:"title" example:"Herb Garden"`
	Description string `json:"description" example:"Everything about herbs"`
}

// ArticleDetail is the full article response type (aliased from the domain layer).
type ArticleDetail = articleservice.ArticleDetail

// ArticleListItem is a lightweight item in a list response (aliased from the domain layer).
type ArticleListItem = articleservice.ArticleListItem

// ArticleListResponse wraps article listings.
type ArticleListResponse struct {
	Articles []ArticleListItem `json:"articles" validate:"required"`
	Total    int               `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// StatsResponse reports index statistics and the indexing mode.
type StatsResponse struct {
	index.Stats
	Mode string `json:"mode" example:"immediate" validate:"required"`
}
