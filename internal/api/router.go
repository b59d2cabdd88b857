package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// snapshots, if non-nil, backs GET /search and GET /exports.
func NewRouter(svc Service, snapshots Snapshots, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, snapshots)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Datasets and exports.
	r.Get("/datasets", h.ListDatasets)
	r.Post("/exports", h.ExportAll)
	r.Post("/exports/{dataset}", h.Export)
	r.Post("/listings/all-except-md", h.AllExceptMd)
	r.Post("/listings/canvases", h.Canvases)

	// Backlinks of one document from the last export.
	r.Get("/backlinks/{dataset}/*", h.Backlinks)

	if snapshots != nil {
		r.Get("/exports", h.ListExports)
		r.Get("/search", h.Search)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
