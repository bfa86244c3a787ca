package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aldergrove/arbor/internal/apperr"
	"github.com/aldergrove/arbor/internal/articleservice"
	"github.com/aldergrove/arbor/internal/gitsync"
	"github.com/aldergrove/arbor/internal/parser"
)

// Handler holds API route handlers.
type Handler struct {
	svc *articleservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *articleservice.Service) *Handler {
	return &Handler{svc: svc}
}

// articlePath extracts the content path from the URL wildcard. Supports
// encoded slashes from generated clients (e.g. blog%2Fintro.md).
func articlePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListGardens handles GET /api/gardens.
//
//	@Summary		List gardens
//	@Tags			gardens
//	@Produce		json
//	@Success		200	{array}	models.Garden
//	@Security		BearerAuth
//	@Router			/gardens [get]
func (h *Handler) ListGardens(w http.ResponseWriter, r *http.Request) {
	gardens, err := h.svc.Gardens(r.Context())
	if err != nil {
		slog.Error("list gardens failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gardens": gardens})
}

// CreateGarden handles POST /api/gardens.
//
//	@Summary		Create a garden
//	@Tags			gardens
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateGardenRequest	true	"Garden to create"
//	@Success		201		{object}	garden.Config
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gardens [post]
func (h *Handler) CreateGarden(w http.ResponseWriter, r *http.Request) {
	var req CreateGardenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Slug == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug is required"))
		return
	}
	cfg, err := h.svc.CreateGarden(r.Context(), req.Slug, req.Title, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("garden already exists"))
		default:
			slog.Error("create garden failed", slog.String("slug", req.Slug), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// ListGardenArticles handles GET /api/gardens/{garden}/articles.
//
//	@Summary		List a garden's articles
//	@Tags			gardens
//	@Produce		json
//	@Param			garden	path		string	true	"Garden slug"
//	@Param			drafts	query		bool	false	"Include drafts"
//	@Success		200		{object}	ArticleListResponse
//	@Security		BearerAuth
//	@Router			/gardens/{garden}/articles [get]
func (h *Handler) ListGardenArticles(w http.ResponseWriter, r *http.Request) {
	gardenSlug := chi.URLParam(r, "garden")
	includeDrafts := r.URL.Query().Get("drafts") == "true"

	items, err := h.svc.ListGarden(r.Context(), gardenSlug, includeDrafts)
	if err != nil {
		slog.Error("list garden articles failed", slog.String("garden", gardenSlug), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": items,
		"total":    len(items),
	})
}

// GetArticle handles GET /api/articles/*.
//
//	@Summary		Get a single article by content path
//	@Tags			articles
//	@Produce		json
//	@Param			path	path		string	true	"Article path"
//	@Success		200		{object}	ArticleDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{path} [get]
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	path := articlePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	article, err := h.svc.GetByPath(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get article failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// CreateArticle handles POST /api/articles.
//
//	@Summary		Create a new article
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateArticleRequest	true	"Article to create"
//	@Success		201		{object}	ArticleDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles [post]
func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	article, err := h.svc.Create(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		h.writeSaveError(w, req.Path, err)
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

// UpdateArticle handles PUT /api/articles/*.
//
//	@Summary		Update an article with optimistic concurrency
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string					true	"Article path"
//	@Param			If-Match	header	string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateArticleRequest	true	"Updated content"
//	@Success		200		{object}	ArticleDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{path} [put]
func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	path := articlePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	article, err := h.svc.Update(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		h.writeSaveError(w, path, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// writeSaveError maps save failures to responses. An index failure after a
// successful write gets its own message: the content is on disk, only the
// derived stores are stale.
func (h *Handler) writeSaveError(w http.ResponseWriter, path string, err error) {
	var parseErr *parser.ParseError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("article already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.As(err, &parseErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("invalid frontmatter: "+parseErr.Error()))
	case errors.Is(err, apperr.ErrIndexUpdate):
		writeJSON(w, http.StatusInternalServerError,
			errorBody("saved, but the index could not be updated; run a reconcile"))
	default:
		slog.Error("save article failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// DeleteArticle handles DELETE /api/articles/*.
//
//	@Summary		Delete an article
//	@Tags			articles
//	@Param			path	path	string	true	"Article path"
//	@Success		204		"Article deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{path} [delete]
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	path := articlePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), path); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("delete article failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recent handles GET /api/recent.
//
//	@Summary		Recently updated published articles
//	@Tags			articles
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	ArticleListResponse
//	@Security		BearerAuth
//	@Router			/recent [get]
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("recent failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"articles": items,
		"total":    len(items),
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across articles
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			garden	query		string	false	"Restrict to one garden"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	gardenSlug := r.URL.Query().Get("garden")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.svc.Search(r.Context(), q, gardenSlug, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ResolveLink handles GET /api/resolve.
//
//	@Summary		Resolve a wikilink token to a destination URL
//	@Tags			links
//	@Produce		json
//	@Param			token	query		string	true	"Wikilink token"
//	@Param			garden	query		string	false	"Garden of the linking page"
//	@Success		200		{object}	index.Resolution
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'token' is required"))
		return
	}
	res, err := h.svc.Resolve(r.Context(), token, r.URL.Query().Get("garden"))
	if err != nil {
		slog.Error("resolve failed", slog.String("token", token), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/stats.
//
//	@Summary		Index statistics
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, mode, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Stats: stats, Mode: mode})
}

// Reconcile handles POST /api/reconcile.
//
//	@Summary		Reconcile the index with the content tree
//	@Tags			admin
//	@Produce		json
//	@Param			force	query		bool	false	"Rebuild even when no changes are pending"
//	@Success		200		{object}	index.ReconcileResult
//	@Security		BearerAuth
//	@Router			/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	res, err := h.svc.Reconcile(r.Context(), force)
	if err != nil {
		slog.Error("reconcile failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History handles GET /api/history/*.
//
//	@Summary		Git history of an article
//	@Tags			articles
//	@Produce		json
//	@Param			path	path		string	true	"Article path"
//	@Param			limit	query		int		false	"Max commits"
//	@Success		200		{array}		gitsync.Commit
//	@Security		BearerAuth
//	@Router			/history/{path} [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	path := articlePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	commits, err := h.svc.History(r.Context(), path, limit)
	if err != nil {
		slog.Error("history failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if commits == nil {
		commits = []gitsync.Commit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}
