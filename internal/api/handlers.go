package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/export"
	"github.com/starford/vaultbridge/internal/index"
	"github.com/starford/vaultbridge/internal/models"
)

// Service is the export surface the handlers drive.
type Service interface {
	Datasets() []export.Info
	Run(ctx context.Context, name string) (export.Result, error)
	RunAll(ctx context.Context) ([]export.Result, error)
	AllExceptMd(ctx context.Context) (string, error)
	Canvases(ctx context.Context) (string, error)
	Backlinks(dataset, path string) ([]models.BacklinkEntry, error)
}

// Snapshots reads the SQLite mirror of the last exports.
type Snapshots interface {
	Search(dataset, query string, limit int) ([]index.SearchResult, error)
	Exports() ([]index.ExportRow, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc       Service
	snapshots Snapshots
}

// NewHandler creates a new Handler.
func NewHandler(svc Service, snapshots Snapshots) *Handler {
	return &Handler{svc: svc, snapshots: snapshots}
}

// docPath extracts the document path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func docPath(r *http.Request) string {
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

// ListDatasets handles GET /api/datasets.
//
//	@Summary		List the configured datasets
//	@Tags			datasets
//	@Produce		json
//	@Success		200	{object}	DatasetListResponse
//	@Security		BearerAuth
//	@Router			/datasets [get]
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DatasetListResponse{Datasets: h.svc.Datasets()})
}

// Export handles POST /api/exports/{dataset}.
//
//	@Summary		Export one dataset
//	@Tags			exports
//	@Produce		json
//	@Param			dataset	path		string	true	"Dataset name"
//	@Success		200		{object}	export.Result
//	@Failure		404		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports/{dataset} [post]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "dataset")
	res, err := h.svc.Run(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnknownDataset):
			writeJSON(w, http.StatusNotFound, errorBody("unknown dataset"))
		case errors.Is(err, apperr.ErrResolution):
			writeJSON(w, http.StatusInternalServerError, errorBody("backlink resolution failed"))
		default:
			slog.Error("export failed", slog.String("dataset", name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExportAll handles POST /api/exports.
//
//	@Summary		Export every dataset
//	@Tags			exports
//	@Produce		json
//	@Success		200	{object}	ExportAllResponse
//	@Security		BearerAuth
//	@Router			/exports [post]
func (h *Handler) ExportAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.RunAll(r.Context())
	body := ExportAllResponse{Results: results}
	if results == nil {
		body.Results = []export.Result{}
	}
	if err != nil {
		slog.Error("export all failed", slog.String("error", err.Error()))
		body.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// AllExceptMd handles POST /api/listings/all-except-md.
//
//	@Summary		Write the folder and non-Markdown file listing
//	@Tags			listings
//	@Produce		json
//	@Success		200	{object}	ListingResponse
//	@Security		BearerAuth
//	@Router			/listings/all-except-md [post]
func (h *Handler) AllExceptMd(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "all-except-md", h.svc.AllExceptMd)
}

// Canvases handles POST /api/listings/canvases.
//
//	@Summary		Write the canvas listing
//	@Tags			listings
//	@Produce		json
//	@Success		200	{object}	ListingResponse
//	@Security		BearerAuth
//	@Router			/listings/canvases [post]
func (h *Handler) Canvases(w http.ResponseWriter, r *http.Request) {
	h.listing(w, r, "canvases", h.svc.Canvases)
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request, kind string, write func(context.Context) (string, error)) {
	path, err := write(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNoBasePath) {
			writeJSON(w, http.StatusInternalServerError, errorBody("cannot determine base path"))
			return
		}
		slog.Error("listing failed", slog.String("kind", kind), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ListingResponse{Path: path})
}

// Backlinks handles GET /api/backlinks/{dataset}/*.
//
//	@Summary		Inbound links of one document
//	@Tags			backlinks
//	@Produce		json
//	@Param			dataset	path		string	true	"Dataset name"
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{dataset}/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	entries, err := h.svc.Backlinks(dataset, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrUnknownDataset) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("backlinks failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if entries == nil {
		entries = []models.BacklinkEntry{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: entries})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across the exported documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			dataset	query		string	true	"Dataset name"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	dataset := r.URL.Query().Get("dataset")
	if q == "" || dataset == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'q' and 'dataset' are required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.snapshots.Search(dataset, q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListExports handles GET /api/exports.
//
//	@Summary		Snapshots stored in the SQLite mirror
//	@Tags			exports
//	@Produce		json
//	@Success		200	{object}	ExportListResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exports [get]
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	rows, err := h.snapshots.Exports()
	if err != nil {
		slog.Error("list exports failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rows == nil {
		rows = []index.ExportRow{}
	}
	writeJSON(w, http.StatusOK, ExportListResponse{Exports: rows})
}
