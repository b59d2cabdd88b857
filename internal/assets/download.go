// Package assets runs the side effects of an export in the background:
// remote image downloads and the external sync script. Failures are
// logged and reported, never returned to the export.
package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/starford/vaultbridge/internal/metrics"
	"github.com/starford/vaultbridge/internal/notify"
	"github.com/starford/vaultbridge/internal/storage"
)

const userAgent = "Mozilla/5.0 (compatible; vaultbridge/1.0)"

// DownloadConfig bounds a single image download.
type DownloadConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// Downloader fetches remote images into the asset import folder. Each
// Fetch runs on its own goroutine; Wait blocks until all are done.
type Downloader struct {
	cfg      DownloadConfig
	client   *http.Client
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// NewDownloader creates a Downloader. m may be nil.
func NewDownloader(cfg DownloadConfig, n notify.Notifier, m *metrics.Metrics, logger *slog.Logger) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if n == nil {
		n = notify.Discard{}
	}
	return &Downloader{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		notifier: n,
		metrics:  m,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

// Fetch downloads url to dest in the background. A second request for a
// dest that is still downloading is ignored.
func (d *Downloader) Fetch(url, dest string) {
	d.mu.Lock()
	if _, busy := d.inFlight[dest]; busy {
		d.mu.Unlock()
		return
	}
	d.inFlight[dest] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.inFlight, dest)
			d.mu.Unlock()
		}()

		if err := d.download(context.Background(), url, dest); err != nil {
			d.logger.Warn("assets: download failed",
				slog.String("url", url),
				slog.String("dest", dest),
				slog.String("error", err.Error()))
			d.metrics.SideEffect("download", "error")
			d.notifier.Warn(fmt.Sprintf("image download failed: %s", url))
			return
		}
		d.logger.Info("assets: image saved", slog.String("dest", dest))
		d.metrics.SideEffect("download", "ok")
	}()
}

// Wait blocks until every started download has finished.
func (d *Downloader) Wait() { d.wg.Wait() }

func (d *Downloader) download(ctx context.Context, url, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("assets: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("assets: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assets: fetch: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > d.cfg.MaxBytes {
		return fmt.Errorf("assets: image too large: %d bytes (max %d)", resp.ContentLength, d.cfg.MaxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxBytes+1))
	if err != nil {
		return fmt.Errorf("assets: read body: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxBytes {
		return fmt.Errorf("assets: image too large: exceeds %d bytes", d.cfg.MaxBytes)
	}
	return storage.WriteFile(dest, data)
}

// exists is swapped in tests.
var exists = func(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
