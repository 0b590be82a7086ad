package run

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/rtmon/internal/clock"
)

// WorkloadConfig shapes the synthetic allocation workload.
type WorkloadConfig struct {
	// Interval between allocation rounds.
	Interval time.Duration
	// ChunkSize is the size of each allocation in bytes.
	ChunkSize int
	// Retain is how many chunks stay reachable at once.
	Retain int
	// ForceGCEvery forces a full collection every n rounds; 0 disables it.
	ForceGCEvery int
	// Clock drives the rounds (default: real clock).
	Clock clock.Clock
}

// DefaultWorkloadConfig allocates 8 MiB every 250ms, keeps the last 16
// chunks and forces a collection every 20 rounds.
func DefaultWorkloadConfig() WorkloadConfig {
	return WorkloadConfig{
		Interval:     250 * time.Millisecond,
		ChunkSize:    8 << 20,
		Retain:       16,
		ForceGCEvery: 20,
	}
}

// Workload allocates memory on a timer so the sampler and GC monitor have
// something to report.
type Workload struct {
	config WorkloadConfig
	logger zerolog.Logger

	mu       sync.Mutex
	retained [][]byte
	next     int
	rounds   int
	forced   int
}

// NewWorkload creates a workload.
func NewWorkload(cfg WorkloadConfig, logger zerolog.Logger) *Workload {
	defaults := DefaultWorkloadConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaults.ChunkSize
	}
	if cfg.Retain <= 0 {
		cfg.Retain = defaults.Retain
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	return &Workload{
		config:   cfg,
		logger:   logger.With().Str("component", "workload").Logger(),
		retained: make([][]byte, cfg.Retain),
	}
}

// Run allocates until ctx is done.
func (w *Workload) Run(ctx context.Context) error {
	w.logger.Info().
		Dur("interval", w.config.Interval).
		Int("chunk_bytes", w.config.ChunkSize).
		Int("retain", w.config.Retain).
		Msg("Synthetic workload started")

	repeater := clock.Every(w.config.Clock, w.config.Interval, w.round)
	<-ctx.Done()
	repeater.Stop()

	w.mu.Lock()
	rounds := w.rounds
	w.retained = make([][]byte, w.config.Retain)
	w.mu.Unlock()

	w.logger.Info().Int("rounds", rounds).Msg("Synthetic workload stopped")
	return nil
}

func (w *Workload) round() {
	w.mu.Lock()
	defer w.mu.Unlock()

	chunk := make([]byte, w.config.ChunkSize)
	// Touch every page so the chunk counts against RSS.
	for i := 0; i < len(chunk); i += 4096 {
		chunk[i] = byte(i)
	}
	w.retained[w.next] = chunk
	w.next = (w.next + 1) % len(w.retained)
	w.rounds++

	if w.config.ForceGCEvery > 0 && w.rounds%w.config.ForceGCEvery == 0 {
		runtime.GC()
		w.forced++
	}
}

// Stats returns the completed rounds and forced collections.
func (w *Workload) Stats() (rounds, forced int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rounds, w.forced
}

// RetainedBytes returns the bytes currently kept reachable.
func (w *Workload) RetainedBytes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := 0
	for _, chunk := range w.retained {
		total += len(chunk)
	}
	return total
}
