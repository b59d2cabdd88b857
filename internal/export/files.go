package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/vaultbridge/internal/models"
	"github.com/starford/vaultbridge/internal/storage"
)

// Output file names of the listing exports.
const (
	AllExceptMdFile = "allExceptMd.json"
	CanvasFile      = "canvas.json"
)

// AllExceptMd writes every folder and every non-Markdown file of the
// vault and returns the output path.
func (e *Exporter) AllExceptMd(ctx context.Context) (string, error) {
	out, err := e.outputPath(AllExceptMdFile, e.settings.AllExceptMdPath)
	if err != nil {
		return "", err
	}
	entries, err := e.store.List("")
	if err != nil {
		return "", fmt.Errorf("export: list vault: %w", err)
	}

	listing := models.FolderListing{Folders: []models.Entry{}, Files: []models.Entry{}}
	for _, en := range entries {
		switch {
		case !en.IsDocument():
			listing.Folders = append(listing.Folders, en)
		case en.Extension != "md":
			listing.Files = append(listing.Files, en)
		}
	}
	if err := e.writeListing(ctx, out, listing); err != nil {
		return "", err
	}
	e.logger.Info("export: wrote the allExceptMd JSON file",
		slog.String("path", out),
		slog.Int("folders", len(listing.Folders)),
		slog.Int("files", len(listing.Files)))
	return out, nil
}

// Canvases writes the list of canvas files and returns the output path.
func (e *Exporter) Canvases(ctx context.Context) (string, error) {
	out, err := e.outputPath(CanvasFile, e.settings.CanvasPath)
	if err != nil {
		return "", err
	}
	entries, err := e.store.List("")
	if err != nil {
		return "", fmt.Errorf("export: list vault: %w", err)
	}

	canvases := []models.Entry{}
	for _, en := range entries {
		if en.IsDocument() && en.Extension == "canvas" {
			canvases = append(canvases, en)
		}
	}
	if err := e.writeListing(ctx, out, canvases); err != nil {
		return "", err
	}
	e.logger.Info("export: wrote the canvas JSON file",
		slog.String("path", out),
		slog.Int("files", len(canvases)))
	return out, nil
}

func (e *Exporter) writeListing(ctx context.Context, out string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	if err := storage.WriteFile(out, data); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	if e.uploader != nil {
		if _, err := e.uploader.Put(ctx, out, data); err != nil {
			e.logger.Warn("export: upload failed", slog.String("path", out), slog.String("error", err.Error()))
		}
	}
	return nil
}
