package promreport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/rtmon/internal/gc"
	"github.com/coral-mesh/rtmon/internal/memory"
	"github.com/coral-mesh/rtmon/internal/report"
)

var defaults = report.Defaults{Env: "prod", Platform: "go", Project: "checkout"}

func newTestReporter(t *testing.T) (*Reporter, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	r, err := New(reg, "")
	require.NoError(t, err)
	return r, reg
}

func TestReporter_MemorySample(t *testing.T) {
	r, _ := newTestReporter(t)

	r.Report(report.NewEnvelope(report.TypeMemory, defaults, memory.Sample{
		RSSMB:      42.5,
		HeapUsedMB: 12.25,
		Spaces:     map[string]float64{"heap/objects": 12.25},
		Goroutines: 7,
		Threads:    5,
	}), report.Options{})

	labels := prometheus.Labels{"env": "prod", "project": "checkout"}
	assert.Equal(t, 42.5, promtest.ToFloat64(r.memory.With(with(labels, "gauge", "rss"))))
	assert.Equal(t, 12.25, promtest.ToFloat64(r.memory.With(with(labels, "gauge", "heap_used"))))
	assert.Equal(t, 12.25, promtest.ToFloat64(r.spaces.With(with(labels, "class", "heap/objects"))))
	assert.Equal(t, 7.0, promtest.ToFloat64(r.goroutines.With(labels)))
	assert.Equal(t, 5.0, promtest.ToFloat64(r.threads.With(labels)))
}

func TestReporter_GCSample(t *testing.T) {
	r, _ := newTestReporter(t)

	sample := gc.Sample{GCDurationMs: 5, Load: 0.25}
	sample.Scavenge = gc.Stat{Count: 3, TotalDurationMs: 15}

	r.Report(report.NewEnvelope(report.TypeGC, defaults, sample), report.Options{Dev: true})

	labels := prometheus.Labels{"env": "prod", "project": "checkout"}
	assert.Equal(t, 3.0, promtest.ToFloat64(r.gcCount.With(with(labels, "kind", "scavenge"))))
	assert.Equal(t, 15.0, promtest.ToFloat64(r.gcDuration.With(with(labels, "kind", "scavenge"))))
	assert.Equal(t, 0.0, promtest.ToFloat64(r.gcCount.With(with(labels, "kind", "markSweepCompact"))))
	assert.Equal(t, 5.0, promtest.ToFloat64(r.gcLast.With(labels)))
	assert.Equal(t, 0.25, promtest.ToFloat64(r.gcLoad.With(labels)))
}

func TestReporter_IgnoresUnknownData(t *testing.T) {
	r, reg := newTestReporter(t)

	r.Report(report.NewEnvelope(report.TypeGC, defaults, "not a sample"), report.Options{})

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "rtmon")
	require.NoError(t, err)

	_, err = New(reg, "rtmon")
	assert.Error(t, err)
}

func TestHandler_ServesMetrics(t *testing.T) {
	r, reg := newTestReporter(t)
	r.Report(report.NewEnvelope(report.TypeGC, defaults, gc.Sample{Load: 0.5}), report.Options{})

	ts := httptest.NewServer(Handler(reg))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `rtmon_gc_load_ratio{env="prod",project="checkout"} 0.5`)
}
