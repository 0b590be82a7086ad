package debug

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBasePath prefixes the trigger routes.
	DefaultBasePath = "/debug/runtime"
	// DefaultAddr listens on localhost with an auto-selected port.
	DefaultAddr = "127.0.0.1:0"

	shutdownTimeout = 5 * time.Second
)

// SessionStarter starts CPU capture sessions.
type SessionStarter interface {
	StartSession(d time.Duration) (string, error)
}

// SnapshotCapturer writes heap snapshots.
type SnapshotCapturer interface {
	Capture() (string, error)
}

// Options configures a Server.
type Options struct {
	// Addr to listen on (default: 127.0.0.1:0).
	Addr string
	// BasePath prefixes the trigger routes (default: /debug/runtime).
	BasePath string
	// Duration of CPU captures when the request does not set one.
	Duration time.Duration
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// Status builds the body of the status route when set.
	Status func() any
}

// Server serves the trigger routes over HTTP.
type Server struct {
	logger    zerolog.Logger
	sessions  SessionStarter
	snapshots SnapshotCapturer
	options   Options
	handler   http.Handler

	listener net.Listener
	server   *http.Server
	addr     string
}

// NewServer creates a debug server. Nothing listens until Start.
func NewServer(logger zerolog.Logger, sessions SessionStarter, snapshots SnapshotCapturer, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	opts.BasePath = "/" + strings.Trim(opts.BasePath, "/")
	if opts.BasePath == "/" {
		opts.BasePath = DefaultBasePath
	}

	s := &Server{
		logger:    logger.With().Str("component", "debug_server").Logger(),
		sessions:  sessions,
		snapshots: snapshots,
		options:   opts,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	base := s.options.BasePath

	mux.HandleFunc("GET "+base+"/cpuprofile", s.handleCPUProfile)
	mux.HandleFunc("GET "+base+"/heapsnapshot", s.handleHeapSnapshot)
	mux.HandleFunc("GET "+base+"/status", s.handleStatus)
	if s.options.Metrics != nil {
		mux.Handle("GET /metrics", s.options.Metrics)
	}
	return mux
}

// Handler returns the route handler, for mounting on an existing server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener
	s.addr = listener.Addr().String()

	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", s.addr).Str("base_path", s.options.BasePath).Msg("Debug server started")
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Debug server error")
		}
	}()

	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	s.logger.Info().Msg("Stopping debug server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop debug server: %w", err)
	}
	s.server = nil
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) handleCPUProfile(w http.ResponseWriter, r *http.Request) {
	d := s.options.Duration
	if raw := r.URL.Query().Get("seconds"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil || !validSeconds(seconds) {
			http.Error(w, fmt.Sprintf("invalid seconds %q", raw), http.StatusBadRequest)
			return
		}
		d = time.Duration(seconds * float64(time.Second))
	}

	result, err := s.sessions.StartSession(d)
	if err != nil {
		s.logger.Warn().Err(err).Msg("CPU profile request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Debug().Dur("duration", d).Str("result", result).Msg("CPU profile requested")
	writeText(w, result)
}

// validSeconds reports whether seconds is a positive, finite duration that
// fits in a time.Duration.
func validSeconds(seconds float64) bool {
	return seconds > 0 && !math.IsInf(seconds, 0) && seconds < math.MaxInt64/float64(time.Second)
}

func (s *Server) handleHeapSnapshot(w http.ResponseWriter, _ *http.Request) {
	path, err := s.snapshots.Capture()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Heap snapshot request failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeText(w, path)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.options.Status == nil {
		http.NotFound(w, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.options.Status()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode status")
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintln(w, body)
}
