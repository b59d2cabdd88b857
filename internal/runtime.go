package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/vaultbridge/internal/assets"
	"github.com/starford/vaultbridge/internal/export"
	"github.com/starford/vaultbridge/internal/index"
	"github.com/starford/vaultbridge/internal/metrics"
	"github.com/starford/vaultbridge/internal/notify"
	"github.com/starford/vaultbridge/internal/sse"
	"github.com/starford/vaultbridge/internal/storage"
	"github.com/starford/vaultbridge/internal/tracing"
)

// runtime holds the collaborators shared by every command.
type runtime struct {
	cfg        *Config
	logger     *slog.Logger
	store      *storage.FS
	metrics    *metrics.Metrics
	downloader *assets.Downloader
	scripts    *assets.Runner
	db         *index.DB
	broker     *sse.Broker
	exporter   *export.Exporter
	spans      tracing.Shutdown
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newRuntime wires the exporter and its side effects. With events set an
// SSE broker receives notices and export progress.
func newRuntime(ctx context.Context, app *application, events bool) (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("sqlite_path", cfg.Output.SQLitePath),
		slog.Int("datasets", len(cfg.Datasets)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if _, err := os.Stat(store.Root()); err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	datasets, err := cfg.ExportDatasets()
	if err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	shutdown, err := tracing.Setup(cfg.App.Tracing.settings(), app.version, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, store: store, metrics: metrics.New(), spans: shutdown}

	var notifier notify.Notifier = notify.Log{Logger: logger}
	exportOpts := []export.Option{
		export.WithMetrics(rt.metrics),
		export.WithLogger(logger),
	}
	if events {
		rt.broker = sse.NewBroker(2 * time.Second)
		notifier = notify.Multi{notifier, notify.Broker{B: rt.broker}}
		exportOpts = append(exportOpts, export.WithPublisher(rt.broker))
	}

	rt.downloader = assets.NewDownloader(assets.DownloadConfig{
		Timeout:  cfg.Images.Timeout,
		MaxBytes: cfg.Images.MaxBytes,
	}, notifier, rt.metrics, logger)
	rt.scripts = assets.NewRunner(notifier, rt.metrics, logger)
	exportOpts = append(exportOpts,
		export.WithNotifier(notifier),
		export.WithFetcher(rt.downloader),
		export.WithScheduler(rt.scripts))

	if cfg.Output.SQLitePath != "" {
		rt.db, err = index.Open(cfg.Output.SQLitePath)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("init index: %w", err)
		}
		exportOpts = append(exportOpts, export.WithSnapshotStore(rt.db))
	}

	if cfg.Output.S3.Enabled() {
		sink, err := storage.NewS3Sink(ctx, cfg.Output.S3)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("init s3: %w", err)
		}
		exportOpts = append(exportOpts, export.WithUploader(sink))
	}

	rt.exporter = export.New(store, cfg.ExportSettings(home), datasets, exportOpts...)
	return rt, nil
}

// close waits for pending downloads and scripts, then releases the sinks
// and flushes pending spans.
func (rt *runtime) close() {
	if rt.downloader != nil {
		rt.downloader.Wait()
	}
	if rt.scripts != nil {
		rt.scripts.Wait()
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("close index", slog.String("error", err.Error()))
		}
	}
	if rt.broker != nil {
		rt.broker.Close()
	}
	if rt.spans != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.spans(ctx); err != nil {
			rt.logger.Warn("flush spans", slog.String("error", err.Error()))
		}
	}
}
