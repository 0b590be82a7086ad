// Package promreport exposes the latest runtime samples as Prometheus gauges.
package promreport

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coral-mesh/rtmon/internal/gc"
	"github.com/coral-mesh/rtmon/internal/memory"
	"github.com/coral-mesh/rtmon/internal/report"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "rtmon"

var baseLabels = []string{"env", "project"}

// Reporter sets gauges from memory and GC envelopes. Envelopes carrying
// other data are ignored.
type Reporter struct {
	memory     *prometheus.GaugeVec
	spaces     *prometheus.GaugeVec
	goroutines *prometheus.GaugeVec
	threads    *prometheus.GaugeVec

	gcCount    *prometheus.GaugeVec
	gcDuration *prometheus.GaugeVec
	gcLast     *prometheus.GaugeVec
	gcLoad     *prometheus.GaugeVec
}

// New registers the gauges on reg.
func New(reg prometheus.Registerer, namespace string) (*Reporter, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Reporter{
		memory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_megabytes",
			Help:      "Process memory gauges in MB.",
		}, append(baseLabels, "gauge")),
		spaces: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_class_megabytes",
			Help:      "Go runtime memory classes in MB.",
		}, append(baseLabels, "class")),
		goroutines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Number of live goroutines.",
		}, baseLabels),
		threads: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "os_threads",
			Help:      "Number of OS threads of the process.",
		}, baseLabels),
		gcCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "events",
			Help:      "GC events observed since the monitor started, by kind.",
		}, append(baseLabels, "kind")),
		gcDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "duration_milliseconds",
			Help:      "Total GC time observed since the monitor started, by kind.",
		}, append(baseLabels, "kind")),
		gcLast: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "last_duration_milliseconds",
			Help:      "Duration of the most recent GC event.",
		}, baseLabels),
		gcLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "load_ratio",
			Help:      "Fraction of recent wall-clock time spent in GC.",
		}, baseLabels),
	}

	for _, c := range []prometheus.Collector{
		r.memory, r.spaces, r.goroutines, r.threads,
		r.gcCount, r.gcDuration, r.gcLast, r.gcLoad,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return r, nil
}

// Report implements report.Reporter.
func (r *Reporter) Report(env report.Envelope, _ report.Options) {
	base := prometheus.Labels{"env": env.Base.Env, "project": env.Base.Project}

	switch s := env.Data.(type) {
	case memory.Sample:
		r.reportMemory(base, s)
	case gc.Sample:
		r.reportGC(base, s)
	}
}

func (r *Reporter) reportMemory(base prometheus.Labels, s memory.Sample) {
	gauges := map[string]float64{
		"rss":          s.RSSMB,
		"system_total": s.SystemTotalMB,
		"heap_total":   s.HeapTotalMB,
		"heap_used":    s.HeapUsedMB,
		"external":     s.ExternalMB,
		"stacks":       s.StacksMB,
		"heap_limit":   s.HeapLimitMB,
	}
	for name, v := range gauges {
		r.memory.With(with(base, "gauge", name)).Set(v)
	}
	for class, v := range s.Spaces {
		r.spaces.With(with(base, "class", class)).Set(v)
	}
	r.goroutines.With(base).Set(float64(s.Goroutines))
	r.threads.With(base).Set(float64(s.Threads))
}

func (r *Reporter) reportGC(base prometheus.Labels, s gc.Sample) {
	for _, kind := range []gc.Kind{gc.KindMinor, gc.KindMajor, gc.KindIncremental, gc.KindWeakCallback} {
		stat := s.Stats.Bucket(kind)
		labels := with(base, "kind", kind.String())
		r.gcCount.With(labels).Set(float64(stat.Count))
		r.gcDuration.With(labels).Set(stat.TotalDurationMs)
	}
	r.gcLast.With(base).Set(s.GCDurationMs)
	r.gcLoad.With(base).Set(s.Load)
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func with(base prometheus.Labels, name, value string) prometheus.Labels {
	labels := make(prometheus.Labels, len(base)+1)
	for k, v := range base {
		labels[k] = v
	}
	labels[name] = value
	return labels
}
