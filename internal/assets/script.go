package assets

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/starford/vaultbridge/internal/metrics"
	"github.com/starford/vaultbridge/internal/notify"
)

// Runner invokes the external sync script after a delay.
type Runner struct {
	shell    string
	timeout  time.Duration
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewRunner creates a Runner that runs scripts with bash.
func NewRunner(n notify.Notifier, m *metrics.Metrics, logger *slog.Logger) *Runner {
	if n == nil {
		n = notify.Discard{}
	}
	return &Runner{shell: "bash", timeout: 5 * time.Minute, notifier: n, metrics: m, logger: logger}
}

// Schedule runs script after delay on a background goroutine and returns
// at once. A missing script is reported without starting the shell.
func (r *Runner) Schedule(delay time.Duration, script string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		time.Sleep(delay)
		if err := r.run(script); err != nil {
			r.logger.Warn("assets: script failed",
				slog.String("script", script),
				slog.String("error", err.Error()))
			r.metrics.SideEffect("script", "error")
			r.notifier.Warn(fmt.Sprintf("Error executing script: %v", err))
			return
		}
		r.metrics.SideEffect("script", "ok")
		r.notifier.Info("Shell script executed successfully")
	}()
}

// Wait blocks until every scheduled run has finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) run(script string) error {
	if !exists(script) {
		return fmt.Errorf("assets: script %s not found", script)
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.shell, script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stderr.Len() > 0 {
		r.logger.Warn("assets: script stderr", slog.String("stderr", stderr.String()))
	}
	r.logger.Info("assets: script done", slog.String("stdout", stdout.String()))
	return nil
}
