// Package export runs dataset exports end to end: load the vault, scan,
// resolve backlinks off the calling goroutine, write the JSON and kick
// off the side effects.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starford/vaultbridge/internal/apperr"
	"github.com/starford/vaultbridge/internal/backlinks"
	"github.com/starford/vaultbridge/internal/checksum"
	"github.com/starford/vaultbridge/internal/extract"
	"github.com/starford/vaultbridge/internal/index"
	"github.com/starford/vaultbridge/internal/metrics"
	"github.com/starford/vaultbridge/internal/models"
	"github.com/starford/vaultbridge/internal/notify"
	"github.com/starford/vaultbridge/internal/scanner"
	"github.com/starford/vaultbridge/internal/sse"
	"github.com/starford/vaultbridge/internal/storage"
	"github.com/starford/vaultbridge/internal/vault"
)

var tracer = otel.Tracer("vaultbridge.export")

// PluginID names the folder under <data_dir>/plugins that holds the
// default outputs.
const PluginID = "vaultbridge"

// resolutionFailed is shown when the backlink pass fails.
const resolutionFailed = "Something went wrong with the backlinks calculation."

// Resolver runs the backlink pass.
type Resolver interface {
	Submit(ctx context.Context, docs []models.DocumentMetadata) <-chan backlinks.Result
}

// Scheduler runs the external script after a delay without blocking.
type Scheduler interface {
	Schedule(delay time.Duration, script string)
}

// Uploader copies a written file to remote storage.
type Uploader interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Publisher receives export progress events.
type Publisher interface {
	PublishExport(typ string, ev sse.ExportEvent)
}

// Settings are the vault-wide export settings.
type Settings struct {
	VaultName string
	URIScheme string
	// OutputDir overrides the default output folder.
	OutputDir string
	// DataDir is the vault configuration folder, ".obsidian" by default.
	DataDir string
	// TextExtensions are always parsed, in addition to dataset extensions.
	TextExtensions []string
	Images         extract.ImageOptions

	ScriptEnabled bool
	ScriptPath    string
	ScriptDelay   time.Duration

	AllExceptMdPath string
	CanvasPath      string
}

// Result summarizes one successful dataset export.
type Result struct {
	Dataset   string `json:"dataset"`
	RunID     string `json:"runId"`
	Path      string `json:"path"`
	Documents int    `json:"documents"`
	Backlinks int    `json:"backlinks"`
	Checksum  string `json:"checksum"`
}

// Exporter owns the dataset table and the collaborators of a run.
type Exporter struct {
	store    storage.Provider
	settings Settings
	datasets []Dataset

	resolver  Resolver
	fetcher   extract.Fetcher
	scheduler Scheduler
	notifier  notify.Notifier
	publisher Publisher
	sink      index.SnapshotStore
	uploader  Uploader
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu   sync.RWMutex
	last map[string][]models.DocumentMetadata
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithResolver replaces the default backlink worker.
func WithResolver(r Resolver) Option { return func(e *Exporter) { e.resolver = r } }

// WithFetcher sets the remote image fetcher.
func WithFetcher(f extract.Fetcher) Option { return func(e *Exporter) { e.fetcher = f } }

// WithScheduler sets the script scheduler.
func WithScheduler(s Scheduler) Option { return func(e *Exporter) { e.scheduler = s } }

// WithNotifier sets where user-facing notices go.
func WithNotifier(n notify.Notifier) Option { return func(e *Exporter) { e.notifier = n } }

// WithPublisher sets the progress event publisher.
func WithPublisher(p Publisher) Option { return func(e *Exporter) { e.publisher = p } }

// WithSnapshotStore mirrors every written dataset into SQLite.
func WithSnapshotStore(s index.SnapshotStore) Option { return func(e *Exporter) { e.sink = s } }

// WithUploader uploads every written file.
func WithUploader(u Uploader) Option { return func(e *Exporter) { e.uploader = u } }

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Exporter) { e.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Exporter) { e.logger = l } }

// New creates an Exporter over store for the given datasets.
func New(store storage.Provider, settings Settings, datasets []Dataset, opts ...Option) *Exporter {
	e := &Exporter{
		store:    store,
		settings: settings,
		datasets: datasets,
		notifier: notify.Discard{},
		logger:   slog.Default(),
		last:     make(map[string][]models.DocumentMetadata),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = backlinks.NewWorker(e.logger)
	}
	if e.settings.DataDir == "" {
		e.settings.DataDir = ".obsidian"
	}
	return e
}

// Datasets describes the configured datasets in table order.
func (e *Exporter) Datasets() []Info {
	out := make([]Info, 0, len(e.datasets))
	for _, ds := range e.datasets {
		output, err := e.outputPath(ds.File, ds.Output)
		if err != nil {
			output = ""
		}
		out = append(out, Info{
			Name:       ds.Name,
			File:       ds.File,
			Output:     output,
			Pattern:    ds.Policy.Pattern.String(),
			Extensions: ds.Extensions,
		})
	}
	return out
}

func (e *Exporter) dataset(name string) (Dataset, error) {
	for _, ds := range e.datasets {
		if strings.EqualFold(ds.Name, name) {
			return ds, nil
		}
	}
	return Dataset{}, fmt.Errorf("export: %q: %w", name, apperr.ErrUnknownDataset)
}

// outputPath picks the destination of a file: an explicit override, the
// configured output folder, or the plugin folder inside the vault's data
// directory.
func (e *Exporter) outputPath(file, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if e.settings.OutputDir != "" {
		return filepath.Join(e.settings.OutputDir, file), nil
	}
	root := e.store.Root()
	if root == "" || !filepath.IsAbs(root) {
		return "", apperr.ErrNoBasePath
	}
	return filepath.Join(root, e.settings.DataDir, "plugins", PluginID, file), nil
}

// Run exports one dataset. The JSON is written only after the backlink
// pass succeeded; on failure the previous output is left untouched.
func (e *Exporter) Run(ctx context.Context, name string) (Result, error) {
	ds, err := e.dataset(name)
	if err != nil {
		return Result{}, err
	}
	out, err := e.outputPath(ds.File, ds.Output)
	if err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	start := time.Now()
	ctx, span := tracer.Start(ctx, "export.Run", trace.WithAttributes(
		attribute.String("dataset", ds.Name),
		attribute.String("run_id", runID)))
	defer span.End()

	logger := e.logger.With(slog.String("dataset", ds.Name), slog.String("run_id", runID))
	e.publish(sse.TypeExportStarted, sse.ExportEvent{Dataset: ds.Name, RunID: runID})

	res, err := e.run(ctx, ds, out, runID, logger)
	if err != nil {
		span.RecordError(err)
		e.metrics.Export(ds.Name, "error", time.Since(start))
		e.publish(sse.TypeExportFailed, sse.ExportEvent{Dataset: ds.Name, RunID: runID, Error: err.Error()})
		logger.Error("export: failed", slog.String("error", err.Error()))
		return Result{}, err
	}

	e.metrics.Export(ds.Name, "ok", time.Since(start))
	e.publish(sse.TypeExportWritten, sse.ExportEvent{Dataset: ds.Name, RunID: runID, Path: out, Documents: res.Documents})
	logger.Info("export: written",
		slog.String("path", out),
		slog.Int("documents", res.Documents),
		slog.Int("backlinks", res.Backlinks),
		slog.String("checksum", res.Checksum[:12]),
		slog.Duration("took", time.Since(start)))

	if e.settings.ScriptEnabled && e.scheduler != nil && e.settings.ScriptPath != "" {
		e.scheduler.Schedule(e.settings.ScriptDelay, e.settings.ScriptPath)
	}
	return res, nil
}

func (e *Exporter) run(ctx context.Context, ds Dataset, out, runID string, logger *slog.Logger) (Result, error) {
	v, err := vault.Load(e.store, e.textExtensions(ds), logger)
	if err != nil {
		return Result{}, fmt.Errorf("export: load vault: %w", err)
	}

	x := extract.New(v, extract.Options{
		Dataset:              ds.Name,
		VaultName:            e.settings.VaultName,
		URIScheme:            e.settings.URIScheme,
		TagTransform:         ds.TagTransform,
		Images:               e.settings.Images,
		IncludeResolvedLinks: ds.IncludeResolvedLinks,
		SkipIdentityOnly:     ds.SkipIdentityOnly,
	}, e.fetcher, e.metrics, logger)

	docs := scanner.New(v, e.metrics, logger).Scan(ctx, scanner.Request{
		Dataset:    ds.Name,
		Policy:     ds.Policy,
		Extensions: ds.Extensions,
		Extractor:  x,
	})

	resolved, ok := <-e.resolver.Submit(ctx, docs)
	if !ok {
		resolved.Err = fmt.Errorf("%w: worker exited without a result", apperr.ErrResolution)
	}
	if resolved.Err != nil {
		e.notifier.Warn(resolutionFailed)
		return Result{}, fmt.Errorf("export: %s: %w", ds.Name, resolved.Err)
	}
	e.metrics.Backlinks(ds.Name, resolved.Backlinks)

	data, err := Encode(resolved.Documents)
	if err != nil {
		return Result{}, fmt.Errorf("export: encode: %w", err)
	}
	if err := storage.WriteFile(out, data); err != nil {
		e.notifier.Warn(fmt.Sprintf("could not write the %s JSON file", ds.File))
		return Result{}, fmt.Errorf("export: write: %w", err)
	}

	res := Result{
		Dataset:   ds.Name,
		RunID:     runID,
		Path:      out,
		Documents: len(resolved.Documents),
		Backlinks: resolved.Backlinks,
		Checksum:  checksum.Sum(data),
	}

	e.mu.Lock()
	e.last[ds.Name] = resolved.Documents
	e.mu.Unlock()

	e.mirror(ctx, ds, res, resolved.Documents, data, logger)
	e.notifier.Info(fmt.Sprintf("wrote the %s JSON file", filepath.Base(out)))
	return res, nil
}

// mirror copies a written snapshot to the optional sinks. Failures are
// logged only: the JSON file is already in place.
func (e *Exporter) mirror(ctx context.Context, ds Dataset, res Result, docs []models.DocumentMetadata, data []byte, logger *slog.Logger) {
	if e.sink != nil {
		err := e.sink.ReplaceDataset(index.Snapshot{
			Dataset:   ds.Name,
			RunID:     res.RunID,
			Checksum:  res.Checksum,
			Documents: docs,
		})
		if err != nil {
			logger.Warn("export: sqlite mirror failed", slog.String("error", err.Error()))
		}
	}
	if e.uploader != nil {
		key, err := e.uploader.Put(ctx, res.Path, data)
		if err != nil {
			logger.Warn("export: upload failed", slog.String("error", err.Error()))
		} else {
			logger.Debug("export: uploaded", slog.String("key", key))
		}
	}
}

// RunAll exports every dataset in table order and reports the failures
// together.
func (e *Exporter) RunAll(ctx context.Context) ([]Result, error) {
	var results []Result
	var errs []error
	for _, ds := range e.datasets {
		res, err := e.Run(ctx, ds.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Backlinks returns the inbound entries of the document at path from the
// last export of dataset, falling back to the SQLite mirror.
func (e *Exporter) Backlinks(dataset, path string) ([]models.BacklinkEntry, error) {
	ds, err := e.dataset(dataset)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	docs, ok := e.last[ds.Name]
	e.mu.RUnlock()
	if ok {
		for _, d := range docs {
			if d.RelativePath == path {
				return d.Backlinks, nil
			}
		}
		return nil, fmt.Errorf("export: %s in %s: %w", path, ds.Name, apperr.ErrNotFound)
	}
	if e.sink != nil {
		return e.sink.Backlinks(ds.Name, path)
	}
	return nil, fmt.Errorf("export: %s has not been exported yet: %w", ds.Name, apperr.ErrNotFound)
}

func (e *Exporter) textExtensions(ds Dataset) []string {
	set := map[string]struct{}{"md": {}}
	for _, ext := range e.settings.TextExtensions {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	for _, ext := range ds.Extensions {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for ext := range set {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (e *Exporter) publish(typ string, ev sse.ExportEvent) {
	if e.publisher != nil {
		e.publisher.PublishExport(typ, ev)
	}
}

// Encode renders v as the exported JSON: two-space indent, no HTML
// escaping, trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
