// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultbridge/internal/api"
	"github.com/starford/vaultbridge/internal/mcpserver"
	"github.com/starford/vaultbridge/internal/watch"
)

// Export writes one dataset.
func Export(ctx context.Context, name string, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, rt *runtime) error {
		_, err := rt.exporter.Run(ctx, name)
		return err
	})
}

// ExportAll writes every dataset in table order.
func ExportAll(ctx context.Context, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, rt *runtime) error {
		_, err := rt.exporter.RunAll(ctx)
		return err
	})
}

// AllExceptMd writes the folder and non-Markdown file listing.
func AllExceptMd(ctx context.Context, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, rt *runtime) error {
		_, err := rt.exporter.AllExceptMd(ctx)
		return err
	})
}

// Canvases writes the canvas listing.
func Canvases(ctx context.Context, opts ...Option) error {
	return oneShot(ctx, opts, func(ctx context.Context, rt *runtime) error {
		_, err := rt.exporter.Canvases(ctx)
		return err
	})
}

// Datasets prints the dataset table as JSON to w.
func Datasets(ctx context.Context, w io.Writer, opts ...Option) error {
	opts = append([]Option{WithLogOutput(io.Discard)}, opts...)
	return oneShot(ctx, opts, func(_ context.Context, rt *runtime) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rt.exporter.Datasets())
	})
}

func oneShot(ctx context.Context, opts []Option, fn func(context.Context, *runtime) error) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, app, false)
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

// Watch re-exports every dataset whenever the vault changes, until a
// shutdown signal arrives.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, app, false)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := rt.exporter.RunAll(ctx); err != nil {
		rt.logger.Warn("initial export failed", slog.String("error", err.Error()))
	}
	return rt.watch(ctx)
}

func (rt *runtime) watch(ctx context.Context) error {
	var ignore []string
	for _, dir := range []string{rt.cfg.Output.Dir, rt.cfg.Images.DownloadDir} {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			ignore = append(ignore, abs)
		}
	}
	return watch.Watch(ctx, watch.Options{
		Root:     rt.store.Root(),
		Debounce: rt.cfg.Watch.Debounce,
		Ignore:   ignore,
	}, rt.logger, func(ctx context.Context, changed []string) {
		rt.logger.Info("watcher: vault changed", slog.Int("paths", len(changed)))
		if _, err := rt.exporter.RunAll(ctx); err != nil {
			rt.logger.Warn("re-export failed", slog.String("error", err.Error()))
		}
	})
}

// ServeMCP runs the MCP server on stdin/stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, app, false)
	if err != nil {
		return err
	}
	defer rt.close()

	var snapshots mcpserver.Snapshots
	if rt.db != nil {
		snapshots = rt.db
	}
	srv := mcpserver.New(rt.exporter, snapshots, app.version)
	rt.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, app, true)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := app.config
	logger := rt.logger

	var snapshots api.Snapshots
	if rt.db != nil {
		snapshots = rt.db
	}
	apiRouter := api.NewRouter(rt.exporter, snapshots, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rt.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if app.watch {
		g.Go(func() error {
			return rt.watch(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
