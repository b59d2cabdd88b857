package api

import (
	"github.com/starford/vaultbridge/internal/export"
	"github.com/starford/vaultbridge/internal/index"
	"github.com/starford/vaultbridge/internal/models"
)

// DatasetListResponse is the body of GET /datasets.
type DatasetListResponse struct {
	Datasets []export.Info `json:"datasets"`
}

// ExportAllResponse is the body of POST /exports. Error joins the
// failures of the datasets missing from Results.
type ExportAllResponse struct {
	Results []export.Result `json:"results"`
	Error   string          `json:"error,omitempty"`
}

// ListingResponse carries the path of a written listing file.
type ListingResponse struct {
	Path string `json:"path"`
}

// BacklinksResponse is the body of GET /backlinks/{dataset}/{path}.
type BacklinksResponse struct {
	Path      string                 `json:"path"`
	Backlinks []models.BacklinkEntry `json:"backlinks"`
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// ExportListResponse is the body of GET /exports.
type ExportListResponse struct {
	Exports []index.ExportRow `json:"exports"`
}
