// Package scanner walks the documents of a vault, applies a dataset's
// selection policy and collects the extracted records in enumeration
// order.
package scanner

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/vaultbridge/internal/extract"
	"github.com/starford/vaultbridge/internal/metrics"
	"github.com/starford/vaultbridge/internal/models"
	"github.com/starford/vaultbridge/internal/selection"
)

var tracer = otel.Tracer("vaultbridge.scanner")

// Corpus is what the scanner needs from the vault.
type Corpus interface {
	Files(exts ...string) []models.Entry
	Tags(p string) []string
}

// Extractor builds the record of one document.
type Extractor interface {
	Extract(e models.Entry) (models.DocumentMetadata, error)
}

// Request describes one dataset scan.
type Request struct {
	Dataset string
	Policy  selection.Policy
	// Extensions are the file kinds scanned. Empty means Markdown only.
	Extensions []string
	Extractor  Extractor
}

// Scanner runs dataset scans over a corpus.
type Scanner struct {
	corpus  Corpus
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Scanner. m may be nil.
func New(corpus Corpus, m *metrics.Metrics, logger *slog.Logger) *Scanner {
	return &Scanner{corpus: corpus, metrics: m, logger: logger}
}

// Scan returns the records of every selected document. Documents that
// cannot be extracted are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, req Request) []models.DocumentMetadata {
	_, span := tracer.Start(ctx, "scanner.Scan",
		trace.WithAttributes(attribute.String("dataset", req.Dataset)))
	defer span.End()

	exts := req.Extensions
	if len(exts) == 0 {
		exts = []string{"md"}
	}

	docs := make([]models.DocumentMetadata, 0)
	for _, e := range s.corpus.Files(exts...) {
		if !req.Policy.Accept(e.Path, func() []string { return s.corpus.Tags(e.Path) }) {
			s.metrics.DocumentRejected(req.Dataset)
			continue
		}
		doc, err := req.Extractor.Extract(e)
		switch {
		case errors.Is(err, extract.ErrIdentityOnly):
			s.metrics.DocumentSkipped(req.Dataset)
			continue
		case err != nil:
			s.logger.Warn("scanner: document skipped",
				slog.String("dataset", req.Dataset),
				slog.String("path", e.Path),
				slog.String("error", err.Error()))
			s.metrics.DocumentSkipped(req.Dataset)
			continue
		}
		s.metrics.DocumentScanned(req.Dataset)
		docs = append(docs, doc)
	}

	span.SetAttributes(attribute.Int("documents", len(docs)))
	s.logger.Debug("scanner: scan done",
		slog.String("dataset", req.Dataset),
		slog.Int("documents", len(docs)))
	return docs
}
