package profiling

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
)

// SnapshotOptions configures a SnapshotWriter.
type SnapshotOptions struct {
	// Dir is the artifact directory (default: dist/public).
	Dir string
	// GCBeforeSnapshot runs a collection before writing the profile.
	GCBeforeSnapshot bool
	// Logger for the writer (default: disabled).
	Logger *zerolog.Logger
}

// SnapshotWriter writes heap snapshots to <Dir>/heap.pprof. Capture blocks
// the caller; concurrent captures must be avoided by the caller.
type SnapshotWriter struct {
	storage Storage
	options SnapshotOptions
	logger  zerolog.Logger
	path    string
	write   func(w io.Writer, gcFirst bool) error
}

// NewSnapshotWriter creates a heap snapshot writer.
func NewSnapshotWriter(storage Storage, opts SnapshotOptions) *SnapshotWriter {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "heap_snapshot").Logger()
	}

	return &SnapshotWriter{
		storage: storage,
		options: opts,
		logger:  logger,
		path:    filepath.Join(opts.Dir, HeapSnapshotFile),
		write:   WriteHeapProfile,
	}
}

// Path returns the canonical artifact path.
func (w *SnapshotWriter) Path() string {
	return w.path
}

// Capture writes a heap snapshot and returns its path.
func (w *SnapshotWriter) Capture() (string, error) {
	var buf bytes.Buffer
	if err := w.write(&buf, w.options.GCBeforeSnapshot); err != nil {
		return "", fmt.Errorf("failed to write heap profile: %w", err)
	}

	if err := replace(w.storage, w.options.Dir, w.path, buf.Bytes()); err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("Failed to store heap snapshot")
		return "", err
	}

	w.logger.Info().
		Str("path", w.path).
		Int("bytes", buf.Len()).
		Str("xxh3", strconv.FormatUint(xxh3.Hash(buf.Bytes()), 16)).
		Msg("Heap snapshot written")
	return w.path, nil
}
