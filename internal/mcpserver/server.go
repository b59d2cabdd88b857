// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the dataset exports for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/export"
	"github.com/starford/vaultbridge/internal/index"
	"github.com/starford/vaultbridge/internal/models"
)

// formatURI names the export format resource.
const formatURI = "vaultbridge://export-format"

// Exports is the export surface the tools drive.
type Exports interface {
	Datasets() []export.Info
	Run(ctx context.Context, name string) (export.Result, error)
	Backlinks(dataset, path string) ([]models.BacklinkEntry, error)
}

// Snapshots reads the SQLite mirror of the last exports.
type Snapshots interface {
	Search(dataset, query string, limit int) ([]index.SearchResult, error)
	Exports() ([]index.ExportRow, error)
}

// Server wraps the MCP server with the export tools.
type Server struct {
	mcp       *server.MCPServer
	exports   Exports
	snapshots Snapshots
}

// New creates a new MCP server with all tools registered. snapshots may
// be nil, in which case search_documents and list_exports are not offered.
func New(exports Exports, snapshots Snapshots, version string) *Server {
	s := &Server{exports: exports, snapshots: snapshots}

	s.mcp = server.NewMCPServer(
		"vaultbridge",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_datasets",
		mcp.WithDescription("List the configured datasets with their selection pattern and output file."),
	), s.listDatasets)

	s.mcp.AddTool(mcp.NewTool("export_dataset",
		mcp.WithDescription("Scan the vault for one dataset, resolve backlinks and write its JSON file. "+
			"Read the export format via the get_export_format tool or the "+formatURI+" resource."),
		mcp.WithString("dataset", mcp.Required(), mcp.Description("Dataset name (e.g. tech)")),
	), s.exportDataset)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("List the documents that link to the specified document, as of the last export."),
		mcp.WithString("dataset", mcp.Required(), mcp.Description("Dataset name")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the document (e.g. folder/note.md)")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_export_format",
		mcp.WithDescription("Returns the description of the exported JSON records."),
	), s.getExportFormat)

	if snapshots != nil {
		s.mcp.AddTool(mcp.NewTool("list_exports",
			mcp.WithDescription("List the last stored export of every dataset: run id, checksum, document count and time."),
		), s.listExports)

		s.mcp.AddTool(mcp.NewTool("search_documents",
			mcp.WithDescription("Full-text search through the last export of a dataset."),
			mcp.WithString("dataset", mcp.Required(), mcp.Description("Dataset name")),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
			mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
		), s.searchDocuments)
	}

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Export Format",
			mcp.WithResourceDescription("Shape of the JSON records written for every dataset."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readExportFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listDatasets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.exports.Datasets(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("dataset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.exports.Run(ctx, name)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownDataset) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown dataset: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := req.RequireString("dataset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.exports.Backlinks(dataset, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s (export the dataset first)", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	sources := make([]string, 0, len(bl))
	for _, b := range bl {
		sources = append(sources, b.SourcePath)
	}
	return mcp.NewToolResultText(strings.Join(sources, "\n")), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := req.RequireString("dataset")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.snapshots.Search(dataset, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listExports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, err := s.snapshots.Exports()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no exports stored yet"), nil
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getExportFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ExportFormat), nil
}

func (s *Server) readExportFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ExportFormat,
		},
	}, nil
}
