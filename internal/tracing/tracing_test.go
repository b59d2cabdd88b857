package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_DisabledKeepsGlobalProvider(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Setup(Config{}, "test", nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetup_UnknownExporter(t *testing.T) {
	_, err := Setup(Config{Enabled: true, Exporter: "zipkin"}, "test", nil)
	assert.Error(t, err)
}

func TestSetup_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(Config{Enabled: true, Exporter: ExporterStdout, ServiceName: "vb-test"}, "1.2.3", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("vaultbridge.test").Start(context.Background(), "export.Run")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, `"Name":"export.Run"`)
	assert.Contains(t, out, "vb-test")
	assert.Contains(t, out, "1.2.3")
}
