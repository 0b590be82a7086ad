// Package otelreport publishes the latest runtime samples as OpenTelemetry
// observable gauges.
package otelreport

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coral-mesh/rtmon/internal/gc"
	"github.com/coral-mesh/rtmon/internal/memory"
	"github.com/coral-mesh/rtmon/internal/report"
)

// Reporter keeps the latest memory and GC samples and reports them when
// the meter collects.
type Reporter struct {
	heapUsed   metric.Float64ObservableGauge
	heapTotal  metric.Float64ObservableGauge
	rss        metric.Float64ObservableGauge
	goroutines metric.Float64ObservableGauge
	gcLoad     metric.Float64ObservableGauge
	gcCount    metric.Float64ObservableGauge
	gcDuration metric.Float64ObservableGauge

	registration metric.Registration

	mu       sync.Mutex
	lastMem  *memory.Sample
	memAttrs attribute.Set
	lastGC   *gc.Sample
	gcAttrs  attribute.Set
}

// New creates the gauges on meter and registers the collection callback.
func New(meter metric.Meter) (*Reporter, error) {
	r := &Reporter{}

	gauges := []struct {
		dst  *metric.Float64ObservableGauge
		name string
		desc string
		unit string
	}{
		{&r.heapUsed, "rtmon.memory.heap.used", "Live heap object memory.", "MB"},
		{&r.heapTotal, "rtmon.memory.heap.total", "Heap memory mapped by the runtime.", "MB"},
		{&r.rss, "rtmon.memory.rss", "Resident set size of the process.", "MB"},
		{&r.goroutines, "rtmon.goroutines", "Number of live goroutines.", "{goroutine}"},
		{&r.gcLoad, "rtmon.gc.load", "Fraction of recent wall-clock time spent in GC.", "1"},
		{&r.gcCount, "rtmon.gc.events", "GC events observed since the monitor started.", "{event}"},
		{&r.gcDuration, "rtmon.gc.duration", "Total GC time observed since the monitor started.", "ms"},
	}

	instruments := make([]metric.Observable, 0, len(gauges))
	for _, g := range gauges {
		gauge, err := meter.Float64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit(g.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create gauge %s: %w", g.name, err)
		}
		*g.dst = gauge
		instruments = append(instruments, gauge)
	}

	registration, err := meter.RegisterCallback(r.observe, instruments...)
	if err != nil {
		return nil, fmt.Errorf("failed to register gauge callback: %w", err)
	}
	r.registration = registration

	return r, nil
}

// Report implements report.Reporter.
func (r *Reporter) Report(env report.Envelope, _ report.Options) {
	attrs := attribute.NewSet(
		attribute.String("env", env.Base.Env),
		attribute.String("project", env.Base.Project),
	)

	r.mu.Lock()
	defer r.mu.Unlock()

	switch s := env.Data.(type) {
	case memory.Sample:
		r.lastMem = &s
		r.memAttrs = attrs
	case gc.Sample:
		r.lastGC = &s
		r.gcAttrs = attrs
	}
}

// Close unregisters the collection callback.
func (r *Reporter) Close() error {
	return r.registration.Unregister()
}

func (r *Reporter) observe(_ context.Context, o metric.Observer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m := r.lastMem; m != nil {
		opt := metric.WithAttributeSet(r.memAttrs)
		o.ObserveFloat64(r.heapUsed, m.HeapUsedMB, opt)
		o.ObserveFloat64(r.heapTotal, m.HeapTotalMB, opt)
		o.ObserveFloat64(r.rss, m.RSSMB, opt)
		o.ObserveFloat64(r.goroutines, float64(m.Goroutines), opt)
	}

	if s := r.lastGC; s != nil {
		o.ObserveFloat64(r.gcLoad, s.Load, metric.WithAttributeSet(r.gcAttrs))
		for _, kind := range []gc.Kind{gc.KindMinor, gc.KindMajor, gc.KindIncremental, gc.KindWeakCallback} {
			stat := s.Stats.Bucket(kind)
			attrs := append(r.gcAttrs.ToSlice(), attribute.String("kind", kind.String()))
			opt := metric.WithAttributes(attrs...)
			o.ObserveFloat64(r.gcCount, float64(stat.Count), opt)
			o.ObserveFloat64(r.gcDuration, stat.TotalDurationMs, opt)
		}
	}

	return nil
}
