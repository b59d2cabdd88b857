// Package watch re-runs exports when the vault changes on disk.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Trigger is called once per debounced burst of changes, with the
// vault-relative paths that changed.
type Trigger func(ctx context.Context, changed []string)

// Options configures a Watch run.
type Options struct {
	Root     string
	Debounce time.Duration
	// Ignore lists absolute directories whose events are dropped, such as
	// the export output folder.
	Ignore []string
}

// Watch runs an fsnotify watcher on the vault until ctx is cancelled.
// Hidden directories are never watched. Directories created while
// running are added to the watch list. Bursts of changes are coalesced:
// trigger runs after no event arrived for opts.Debounce.
func Watch(ctx context.Context, opts Options, logger *slog.Logger, trigger Trigger) error {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	ignored := func(abs string) bool {
		for _, dir := range opts.Ignore {
			if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
				return true
			}
		}
		return hiddenBelow(opts.Root, abs)
	}

	if err := addDirsRecursive(w, opts.Root, ignored); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", opts.Root))

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]struct{})

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(opts.Debounce)
			fire = timer.C
		} else {
			timer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			clear(pending)
			logger.Debug("watcher: change burst", slog.Int("paths", len(changed)))
			trigger(ctx, changed)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name
			if ignored(absPath) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath, ignored); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
				}
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			rel, relErr := filepath.Rel(opts.Root, absPath)
			if relErr != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher,
// skipping ignored ones.
func addDirsRecursive(w *fsnotify.Watcher, root string, ignored func(string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// hiddenBelow reports whether abs has a dot-prefixed element below root.
func hiddenBelow(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
