package profiling

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/rtmon/internal/clock"
)

const (
	// DefaultDir is the default artifact directory.
	DefaultDir = "dist/public"
	// DefaultDuration is the default capture length.
	DefaultDuration = 180 * time.Second

	// CPUProfileFile is the canonical CPU profile artifact name.
	CPUProfileFile = "cpu.pprof"
	// HeapSnapshotFile is the canonical heap snapshot artifact name.
	HeapSnapshotFile = "heap.pprof"

	countdownTick = time.Second
)

// ErrExport marks a capture that could not be turned into an artifact.
var ErrExport = errors.New("profile export failed")

// Format selects the encoding of exported CPU profiles.
type Format string

const (
	// FormatPprof is the gzip-compressed protobuf read by `go tool pprof`.
	FormatPprof Format = "pprof"
	// FormatProto is the uncompressed protobuf.
	FormatProto Format = "proto"
)

// State is the externally visible state of the controller.
type State string

const (
	// StateIdle means no capture and no countdown.
	StateIdle State = "idle"
	// StateRunning means a capture is active.
	StateRunning State = "running"
	// StateCooldown means the countdown of the last requested window is
	// still ticking but no capture is active.
	StateCooldown State = "cooldown"
)

// Session is a read-only view of the controller.
type Session struct {
	ID        string        `json:"id,omitempty"`
	State     State         `json:"state"`
	Elapsed   time.Duration `json:"elapsed"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"startedAt,omitzero"`
	Path      string        `json:"path"`
	Captures  int           `json:"captures"`
	LastError string        `json:"lastError,omitempty"`
}

// Options configures a Controller.
type Options struct {
	// Dir is the artifact directory (default: dist/public).
	Dir string
	// Format of exported profiles (default: pprof).
	Format Format
	// Clock drives the countdown and capture timers (default: real clock).
	Clock clock.Clock
	// Logger for the controller (default: disabled).
	Logger *zerolog.Logger
}

// Controller runs at most one CPU capture at a time and exports it to
// <Dir>/cpu.pprof when the requested duration elapses.
//
// Alongside the capture, a one-second countdown tracks how much of the
// last requested window remains. Requests that arrive while a capture is
// running get the remaining time instead of a second capture.
type Controller struct {
	profiler Profiler
	storage  Storage
	options  Options
	clock    clock.Clock
	logger   zerolog.Logger
	path     string

	mu           sync.Mutex
	countdown    *clock.Repeater
	countdownGen uint64
	window       time.Duration
	elapsed      time.Duration

	capture    *clock.Timer
	captureGen uint64
	buf        *bytes.Buffer
	id         string
	startedAt  time.Time
	captures   int
	lastErr    error
}

// NewController creates a controller.
func NewController(profiler Profiler, storage Storage, opts Options) *Controller {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.Format == "" {
		opts.Format = FormatPprof
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "cpu_profiler").Logger()
	}

	return &Controller{
		profiler: profiler,
		storage:  storage,
		options:  opts,
		clock:    opts.Clock,
		logger:   logger,
		path:     filepath.Join(opts.Dir, CPUProfileFile),
	}
}

// Path returns the canonical artifact path.
func (c *Controller) Path() string {
	return c.path
}

// StartSession requests a capture of duration d. When no capture is
// running it starts one and returns the artifact path; the capture
// completes in the background. While a capture is running it returns a
// busy message with the seconds remaining in the current window. An
// error is returned only if the profiler refuses to start.
func (c *Controller) StartSession(d time.Duration) (string, error) {
	if d <= 0 {
		return "", fmt.Errorf("profile duration must be positive, got %s", d)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	freshCountdown := c.countdown == nil
	if freshCountdown {
		c.startCountdownLocked(d)
	}

	if c.capture != nil {
		remaining := (c.window - c.elapsed) / time.Second
		c.logger.Debug().
			Str("session_id", c.id).
			Int64("remaining_seconds", int64(remaining)).
			Msg("Profile capture already running")
		return BusyMessage(int64(remaining)), nil
	}

	buf := new(bytes.Buffer)
	if err := c.profiler.Start(buf); err != nil {
		if freshCountdown {
			c.stopCountdownLocked()
		}
		c.lastErr = err
		return "", fmt.Errorf("failed to start cpu profile: %w", err)
	}

	c.buf = buf
	c.id = uuid.NewString()
	c.startedAt = c.clock.Now()
	c.captureGen++
	gen := c.captureGen
	c.capture = c.clock.AfterFunc(d, func() { c.finish(gen) })

	c.logger.Info().
		Str("session_id", c.id).
		Dur("duration", d).
		Str("path", c.path).
		Msg("CPU profile capture started")

	return c.path, nil
}

// BusyMessage is returned by StartSession while a capture is running.
func BusyMessage(remainingSeconds int64) string {
	return fmt.Sprintf("profile capture in progress, retry in %d seconds", remainingSeconds)
}

// Status returns the current session view.
func (c *Controller) Status() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := StateIdle
	switch {
	case c.capture != nil:
		state = StateRunning
	case c.countdown != nil:
		state = StateCooldown
	}

	s := Session{
		ID:        c.id,
		State:     state,
		Elapsed:   c.elapsed,
		Duration:  c.window,
		StartedAt: c.startedAt,
		Path:      c.path,
		Captures:  c.captures,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Reset abandons any running capture without exporting it, stops the
// countdown and returns the controller to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		c.capture.Stop()
		c.capture = nil
		c.captureGen++
		c.profiler.Stop()
		c.buf = nil
		c.logger.Info().Str("session_id", c.id).Msg("CPU profile capture abandoned")
	}
	c.stopCountdownLocked()
	c.elapsed = 0
}

func (c *Controller) startCountdownLocked(window time.Duration) {
	c.window = window
	c.elapsed = 0
	c.countdownGen++
	gen := c.countdownGen
	c.countdown = clock.Every(c.clock, countdownTick, func() { c.tick(gen) })
}

func (c *Controller) stopCountdownLocked() {
	if c.countdown == nil {
		return
	}
	c.countdown.Stop()
	c.countdown = nil
	c.countdownGen++
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.countdownGen {
		return
	}
	c.elapsed += countdownTick
	if c.elapsed >= c.window {
		c.stopCountdownLocked()
	}
}

// finish stops the capture started under gen and exports it.
func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	if gen != c.captureGen || c.capture == nil {
		c.mu.Unlock()
		return
	}
	c.profiler.Stop()
	raw := c.buf.Bytes()
	c.buf = nil
	c.capture = nil
	id := c.id
	c.mu.Unlock()

	err := c.export(id, raw)

	c.mu.Lock()
	c.lastErr = err
	if err == nil {
		c.captures++
	}
	c.mu.Unlock()
}

func (c *Controller) export(id string, raw []byte) error {
	data, err := encode(raw, c.options.Format)
	if err != nil {
		c.logger.Error().Err(err).Str("session_id", id).Msg("Failed to export CPU profile")
		return err
	}

	if err := replace(c.storage, c.options.Dir, c.path, data); err != nil {
		c.logger.Error().Err(err).Str("session_id", id).Str("path", c.path).Msg("Failed to store CPU profile")
		return err
	}

	c.logger.Info().
		Str("session_id", id).
		Str("path", c.path).
		Int("bytes", len(data)).
		Str("xxh3", strconv.FormatUint(xxh3.Hash(data), 16)).
		Msg("CPU profile written")
	return nil
}

// encode validates a raw pprof capture and re-encodes it in format.
func encode(raw []byte, format Format) ([]byte, error) {
	p, err := profile.ParseData(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}

	var out bytes.Buffer
	switch format {
	case FormatProto:
		err = p.WriteUncompressed(&out)
	case FormatPprof:
		err = p.Write(&out)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrExport, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	return out.Bytes(), nil
}
