package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/rtmon/internal/clock"
	"github.com/coral-mesh/rtmon/internal/report"
	"github.com/coral-mesh/rtmon/internal/report/mocks"
)

type staticReader struct {
	mu    sync.Mutex
	reads int
}

func (r *staticReader) Read() Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	return Sample{HeapUsedMB: float64(r.reads)}
}

func TestGaugeReader_Read(t *testing.T) {
	fc := clock.Fake(time.UnixMilli(1700000000000))
	r := NewGaugeReader(fc, zerolog.Nop())

	keep := make([]byte, 8<<20)
	s := r.Read()
	runtime.KeepAlive(keep)

	assert.Equal(t, int64(1700000000000), s.TimestampMs)
	assert.Greater(t, s.HeapUsedMB, 0.0)
	assert.GreaterOrEqual(t, s.HeapTotalMB, s.HeapUsedMB)
	assert.Greater(t, s.StacksMB, 0.0)
	assert.Greater(t, s.Goroutines, uint64(0))
	assert.Contains(t, s.Spaces, "heap/objects")
	assert.NotContains(t, s.Spaces, "total")
	assert.Equal(t, s.HeapUsedMB, s.Spaces["heap/objects"])
}

func TestGaugeReader_NoLimitOmitted(t *testing.T) {
	if debug.SetMemoryLimit(-1) != math.MaxInt64 {
		t.Skip("memory limit configured for this process")
	}

	s := NewGaugeReader(nil, zerolog.Nop()).Read()
	assert.Zero(t, s.HeapLimitMB)
}

func TestSampler_ReportsEveryInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	reporter := mocks.NewMockReporter(ctrl)
	fc := clock.Fake(time.Unix(0, 0))

	defaults := report.Defaults{Env: "local", Platform: "go", Project: "rtmon"}
	s := NewSampler(&staticReader{}, reporter, Options{Dev: true, Defaults: defaults, Clock: fc})

	var heap []float64
	reporter.EXPECT().
		Report(gomock.Any(), report.Options{Dev: true}).
		Do(func(env report.Envelope, _ report.Options) {
			assert.Equal(t, report.TypeMemory, env.Type)
			assert.Equal(t, "rtmon", env.Base.Project)
			heap = append(heap, env.Data.(Sample).HeapUsedMB)
		}).
		Times(3)

	s.Start()
	defer s.Stop()

	fc.Advance(4 * time.Second)
	require.Empty(t, heap)
	fc.Advance(11 * time.Second)

	assert.Equal(t, []float64{1, 2, 3}, heap)
}

func TestSampler_RestartKeepsSingleTimer(t *testing.T) {
	rec := &staticReader{}
	fc := clock.Fake(time.Unix(0, 0))
	s := NewSampler(rec, nil, Options{Clock: fc})

	s.Start()
	s.Start()
	assert.Equal(t, 1, fc.Pending())

	fc.Advance(DefaultInterval)
	assert.Equal(t, 1, rec.reads, "one emission per tick")

	s.Stop()
}

func TestSampler_StopIsIdempotent(t *testing.T) {
	rec := &staticReader{}
	fc := clock.Fake(time.Unix(0, 0))
	s := NewSampler(rec, nil, Options{Interval: time.Second, Clock: fc})

	s.Start()
	require.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
	assert.Equal(t, 0, fc.Pending())

	fc.Advance(5 * time.Second)
	assert.Zero(t, rec.reads)
}
