// Package backlinks computes the reverse-link graph of an extracted
// collection. The pass runs on its own goroutine and hands the augmented
// collection back over a channel.
package backlinks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/models"
)

var tracer = otel.Tracer("vaultbridge.backlinks")

// Compute attaches to every record the records that link to it. docs is
// modified in place and returned along with the number of entries
// attached.
//
// Entries are deduplicated per (target, source) pair: a source that
// reaches the same target several times, through plain links, embeds or
// heading fragments, is listed once, at its first link. The backlinks of
// a record are therefore a set of sources in enumeration order, and the
// count is the number of distinct pairs, not of links. Self-links are
// kept. Links to paths outside docs are ignored.
func Compute(docs []models.DocumentMetadata) ([]models.DocumentMetadata, int) {
	byPath := make(map[string]int, len(docs))
	for i := range docs {
		docs[i].Backlinks = nil
		byPath[docs[i].RelativePath] = i
	}

	type edge struct{ target, source string }
	seen := make(map[edge]struct{})
	total := 0
	for _, src := range docs {
		for _, l := range src.Links {
			if l.ResolvedPath == "" {
				continue
			}
			ti, ok := byPath[l.ResolvedPath]
			if !ok {
				continue
			}
			e := edge{l.ResolvedPath, src.RelativePath}
			if _, dup := seen[e]; dup {
				continue
			}
			seen[e] = struct{}{}
			docs[ti].Backlinks = append(docs[ti].Backlinks, models.BacklinkEntry{
				SourcePath:  src.RelativePath,
				DisplayName: src.FileName,
			})
			total++
		}
	}
	return docs, total
}

// Result is the single message a Worker delivers.
type Result struct {
	Documents []models.DocumentMetadata
	Backlinks int
	Err       error
}

// Worker runs Compute off the calling goroutine.
type Worker struct {
	logger  *slog.Logger
	compute func([]models.DocumentMetadata) ([]models.DocumentMetadata, int)
}

// NewWorker creates a Worker.
func NewWorker(logger *slog.Logger) *Worker {
	return &Worker{logger: logger, compute: Compute}
}

// Submit starts resolution on a deep copy of docs and returns the channel
// that receives exactly one Result before it is closed. A panic inside
// the pass is delivered as an error wrapping apperr.ErrResolution.
func (w *Worker) Submit(ctx context.Context, docs []models.DocumentMetadata) <-chan Result {
	in := make([]models.DocumentMetadata, len(docs))
	for i := range docs {
		in[i] = docs[i].Clone()
	}

	out := make(chan Result, 1)
	go func() {
		defer close(out)
		_, span := tracer.Start(ctx, "backlinks.Resolve",
			trace.WithAttributes(attribute.Int("documents", len(in))))
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("%w: %v", apperr.ErrResolution, r)
				w.logger.Error("backlinks: worker panicked",
					slog.String("error", err.Error()),
					slog.String("stack", string(debug.Stack())))
				span.RecordError(err)
				out <- Result{Err: err}
			}
		}()

		resolved, n := w.compute(in)
		span.SetAttributes(attribute.Int("backlinks", n))
		out <- Result{Documents: resolved, Backlinks: n}
	}()
	return out
}
