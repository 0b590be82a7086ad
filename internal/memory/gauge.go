// Package memory reads process and heap gauges from the Go runtime and
// reports them on a fixed interval.
package memory

import (
	"math"
	"os"
	"runtime/metrics"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/coral-mesh/rtmon/internal/clock"
	"github.com/coral-mesh/rtmon/internal/safe"
	"github.com/coral-mesh/rtmon/internal/units"
)

const (
	classPrefix = "/memory/classes/"
	bytesSuffix = ":bytes"

	metricGoroutines = "/sched/goroutines:goroutines"
	metricMemLimit   = "/gc/gomemlimit:bytes"

	classTotal       = "total"
	classHeapObjects = "heap/objects"
	classHeapUnused  = "heap/unused"
	classHeapFree    = "heap/free"
	classReleased    = "heap/released"
	classHeapStacks  = "heap/stacks"
	classOSStacks    = "os-stacks"
)

// Sample is a point-in-time snapshot of process memory. Sizes are in MB
// rounded to two decimals. Gauges that could not be read are left zero.
type Sample struct {
	TimestampMs int64 `json:"timestampMs"`
	// RSSMB is the resident set size of the process.
	RSSMB float64 `json:"rssMB,omitempty"`
	// SystemTotalMB is the total physical memory of the host.
	SystemTotalMB float64 `json:"systemTotalMB,omitempty"`
	// HeapTotalMB is heap memory mapped by the runtime, used or not.
	HeapTotalMB float64 `json:"heapTotalMB"`
	// HeapUsedMB is memory occupied by live and not yet swept heap objects.
	HeapUsedMB float64 `json:"heapUsedMB"`
	// ExternalMB is runtime memory outside the heap.
	ExternalMB float64 `json:"externalMB"`
	// StacksMB is memory used by goroutine and OS thread stacks.
	StacksMB float64 `json:"stacksMB"`
	// Spaces holds every runtime memory class keyed by class path, e.g. "heap/objects".
	Spaces map[string]float64 `json:"spaces,omitempty"`
	// Goroutines is the number of live goroutines.
	Goroutines uint64 `json:"goroutines"`
	// Threads is the number of OS threads of the process.
	Threads int32 `json:"threads,omitempty"`
	// HeapLimitMB is the soft memory limit; omitted when no limit is set.
	HeapLimitMB float64 `json:"heapLimitMB,omitempty"`
}

// Reader produces memory samples.
type Reader interface {
	Read() Sample
}

// GaugeReader reads memory gauges from runtime/metrics and the host.
type GaugeReader struct {
	clock  clock.Clock
	logger zerolog.Logger

	mu          sync.Mutex
	samples     []metrics.Sample
	proc        *process.Process
	systemTotal uint64
	warned      map[string]bool
}

// NewGaugeReader creates a reader for the current process.
func NewGaugeReader(c clock.Clock, logger zerolog.Logger) *GaugeReader {
	if c == nil {
		c = clock.Real()
	}

	r := &GaugeReader{
		clock:  c,
		logger: logger.With().Str("component", "gauge_reader").Logger(),
		warned: make(map[string]bool),
	}

	for _, desc := range metrics.All() {
		if strings.HasPrefix(desc.Name, classPrefix) && strings.HasSuffix(desc.Name, bytesSuffix) {
			r.samples = append(r.samples, metrics.Sample{Name: desc.Name})
		}
	}
	r.samples = append(r.samples,
		metrics.Sample{Name: metricGoroutines},
		metrics.Sample{Name: metricMemLimit},
	)

	pid, _ := safe.IntToInt32(os.Getpid())
	proc, err := process.NewProcess(pid)
	if err != nil {
		r.unavailable("process", err)
	}
	r.proc = proc

	return r
}

// Read returns the current gauges. It never fails; unavailable values are omitted.
func (r *GaugeReader) Read() Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	metrics.Read(r.samples)

	s := Sample{
		TimestampMs: r.clock.Now().UnixMilli(),
		Spaces:      make(map[string]float64),
	}

	classes := make(map[string]uint64)
	for _, sample := range r.samples {
		switch sample.Name {
		case metricGoroutines:
			if sample.Value.Kind() == metrics.KindUint64 {
				s.Goroutines = sample.Value.Uint64()
			}
		case metricMemLimit:
			if sample.Value.Kind() == metrics.KindUint64 {
				if limit := sample.Value.Uint64(); limit < math.MaxInt64 {
					s.HeapLimitMB = units.ByteToMegabytes(limit)
				}
			}
		default:
			if sample.Value.Kind() != metrics.KindUint64 {
				continue
			}
			class := strings.TrimSuffix(strings.TrimPrefix(sample.Name, classPrefix), bytesSuffix)
			classes[class] = sample.Value.Uint64()
			if class != classTotal {
				s.Spaces[class] = units.ByteToMegabytes(classes[class])
			}
		}
	}

	heapTotal := classes[classHeapObjects] + classes[classHeapUnused] + classes[classHeapFree] + classes[classReleased]
	s.HeapTotalMB = units.ByteToMegabytes(heapTotal)
	s.HeapUsedMB = units.ByteToMegabytes(classes[classHeapObjects])
	s.StacksMB = units.ByteToMegabytes(classes[classHeapStacks] + classes[classOSStacks])
	if total := classes[classTotal]; total > heapTotal {
		s.ExternalMB = units.ByteToMegabytes(total - heapTotal)
	}

	r.readProcess(&s)
	r.readHost(&s)

	return s
}

func (r *GaugeReader) readProcess(s *Sample) {
	if r.proc == nil {
		return
	}

	if info, err := r.proc.MemoryInfo(); err != nil {
		r.unavailable("rss", err)
	} else {
		s.RSSMB = units.ByteToMegabytes(info.RSS)
	}

	if threads, err := r.proc.NumThreads(); err != nil {
		r.unavailable("threads", err)
	} else {
		s.Threads = threads
	}
}

func (r *GaugeReader) readHost(s *Sample) {
	// Host memory does not change at runtime.
	if r.systemTotal == 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			r.unavailable("system_total", err)
			return
		}
		r.systemTotal = vm.Total
	}
	s.SystemTotalMB = units.ByteToMegabytes(r.systemTotal)
}

// unavailable logs a missing gauge once per gauge.
func (r *GaugeReader) unavailable(gauge string, err error) {
	if r.warned[gauge] {
		return
	}
	r.warned[gauge] = true
	r.logger.Debug().Err(err).Str("gauge", gauge).Msg("Memory gauge unavailable, omitting")
}
