// Package tracing installs the OpenTelemetry tracer provider that backs
// the spans of the export pipeline.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterStdout writes finished spans as JSON lines.
const ExporterStdout = "stdout"

// Config selects where spans go.
type Config struct {
	Enabled  bool
	Exporter string
	// Output is a file spans are appended to. Empty writes to the
	// fallback writer given to Setup.
	Output      string
	ServiceName string
	SampleRatio float64
}

// Shutdown flushes pending spans and releases the exporter.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup builds a tracer provider from cfg and makes it the global one.
// A disabled config leaves the global no-op provider in place.
func Setup(cfg Config, version string, fallback io.Writer) (Shutdown, error) {
	if !cfg.Enabled {
		return noop, nil
	}
	if cfg.Exporter != "" && cfg.Exporter != ExporterStdout {
		return nil, fmt.Errorf("tracing: unknown exporter %q", cfg.Exporter)
	}

	w := fallback
	if w == nil {
		w = os.Stderr
	}
	var file *os.File
	if cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("tracing: open output: %w", err)
		}
		file, w = f, f
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, fmt.Errorf("tracing: exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "vaultbridge"
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", name),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			err = errors.Join(err, file.Close())
		}
		return err
	}, nil
}
