package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/vaultbridge/internal/export"
	"github.com/starford/vaultbridge/internal/index"
	"github.com/starford/vaultbridge/internal/selection"
	"github.com/starford/vaultbridge/internal/testutil"
)

func testServer(t *testing.T) (*Server, *index.DB) {
	t.Helper()

	_, store := testutil.TestVault(t, map[string]string{
		"a.md":      "links to [[b]] and [[b#Part]]",
		"sub/b.md":  "---\ntags: [lang/golang]\n---\ngoroutines everywhere",
		"c.md":      "links to [[b|Bee]]",
		"img/x.png": "png",
	})
	db := testutil.TestDB(t)

	exp := export.New(store, export.Settings{VaultName: "Vault", OutputDir: t.TempDir()},
		[]export.Dataset{{Name: "tech", File: "tech.json", Policy: selection.MustCompile(`.*`)}},
		export.WithSnapshotStore(db),
		export.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	return New(exp, db, "test"), db
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no "call tool" test helper; call the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_datasets":
		result, err = srv.listDatasets(ctx, req)
	case "export_dataset":
		result, err = srv.exportDataset(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "search_documents":
		result, err = srv.searchDocuments(ctx, req)
	case "list_exports":
		result, err = srv.listExports(ctx, req)
	case "get_export_format":
		result, err = srv.getExportFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListDatasets(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_datasets", map[string]interface{}{})
	var infos []export.Info
	if err := json.Unmarshal([]byte(resultText(r)), &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "tech" {
		t.Errorf("datasets = %+v", infos)
	}
	if infos[0].Pattern != ".*" {
		t.Errorf("pattern = %q, want %q", infos[0].Pattern, ".*")
	}
}

func TestExportDataset(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "export_dataset", map[string]interface{}{"dataset": "tech"})
	if r.IsError {
		t.Fatalf("export error: %s", resultText(r))
	}
	var res export.Result
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Documents != 3 {
		t.Errorf("documents = %d, want 3", res.Documents)
	}
	if res.Backlinks != 2 {
		t.Errorf("backlinks = %d, want 2", res.Backlinks)
	}
}

func TestExportDataset_Unknown(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "export_dataset", map[string]interface{}{"dataset": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown dataset")
	}
}

func TestExportDataset_MissingArgument(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "export_dataset", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error without dataset")
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_backlinks", map[string]interface{}{"dataset": "tech", "path": "sub/b.md"})
	if !r.IsError {
		t.Error("expected error before the first export")
	}

	_ = callTool(t, srv, "export_dataset", map[string]interface{}{"dataset": "tech"})

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"dataset": "tech", "path": "sub/b.md"})
	if got, want := resultText(r), "a.md\nc.md"; got != want {
		t.Errorf("backlinks = %q, want %q", got, want)
	}

	r = callTool(t, srv, "get_backlinks", map[string]interface{}{"dataset": "tech", "path": "a.md"})
	if got := resultText(r); got != "no backlinks found" {
		t.Errorf("backlinks of a.md = %q", got)
	}
}

func TestSearchDocuments(t *testing.T) {
	srv, _ := testServer(t)
	_ = callTool(t, srv, "export_dataset", map[string]interface{}{"dataset": "tech"})

	r := callTool(t, srv, "search_documents", map[string]interface{}{"dataset": "tech", "query": "golang"})
	if r.IsError {
		t.Fatalf("search error: %s", resultText(r))
	}
	var results []index.SearchResult
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || results[0].Path != "sub/b.md" {
		t.Errorf("results = %+v, want sub/b.md", results)
	}
}

func TestGetExportFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_export_format", map[string]interface{}{})
	if !strings.Contains(resultText(r), "relativePath") {
		t.Error("format should describe relativePath")
	}
}

func TestListExports(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_exports", nil)
	if r.IsError {
		t.Fatalf("list_exports error: %s", resultText(r))
	}
	if got := resultText(r); got != "no exports stored yet" {
		t.Errorf("before export = %q", got)
	}

	r = callTool(t, srv, "export_dataset", map[string]interface{}{"dataset": "tech"})
	if r.IsError {
		t.Fatalf("export error: %s", resultText(r))
	}

	r = callTool(t, srv, "list_exports", nil)
	var rows []index.ExportRow
	if err := json.Unmarshal([]byte(resultText(r)), &rows); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(rows) != 1 || rows[0].Dataset != "tech" || rows[0].Documents != 3 {
		t.Errorf("rows = %+v, want one tech row with 3 documents", rows)
	}
}
