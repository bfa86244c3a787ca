package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aldergrove/arbor/internal/articleservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *articleservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Gardens.
	r.Get("/gardens", h.ListGardens)
	r.Post("/gardens", h.CreateGarden)
	r.Get("/gardens/{garden}/articles", h.ListGardenArticles)

	// Articles CRUD by content path.
	r.Post("/articles", h.CreateArticle)
	r.Get("/articles/*", h.GetArticle)
	r.Put("/articles/*", h.UpdateArticle)
	r.Delete("/articles/*", h.DeleteArticle)

	// Reading surfaces.
	r.Get("/recent", h.Recent)
	r.Get("/search", h.Search)
	r.Get("/resolve", h.ResolveLink)
	r.Get("/history/*", h.History)

	// Index administration.
	r.Get("/stats", h.Stats)
	r.Post("/reconcile", h.Reconcile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
