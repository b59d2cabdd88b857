package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.DocumentScanned("tech")
	m.Links("tech", 3, 1)
	m.Backlinks("tech", 2)
	m.Export("tech", "ok", time.Second)
	m.SideEffect("download", "ok")
}

func TestCounters(t *testing.T) {
	m := New()
	m.DocumentScanned("tech")
	m.DocumentScanned("tech")
	m.DocumentSkipped("tech")
	m.Links("tech", 5, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.documents.WithLabelValues("tech", "scanned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documents.WithLabelValues("tech", "skipped")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.links.WithLabelValues("tech", "normalized")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.links.WithLabelValues("tech", "dropped")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.Export("courses", "ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `vaultbridge_exports_total{dataset="courses",status="ok"} 1`), body)
	assert.Contains(t, body, "vaultbridge_export_duration_seconds_bucket")
}
