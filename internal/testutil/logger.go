// Package testutil provides testing utilities for the rtmon packages.
package testutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger creates a test logger that discards output.
// Use NewTestLoggerWithOutput to log to t.Log().
func NewTestLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(io.Discard).With().Timestamp().Logger()
}

// NewTestLoggerWithOutput creates a test logger that logs to t.Log().
func NewTestLoggerWithOutput(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.ConsoleWriter{Out: &testLogWriter{t: t}, NoColor: true}).
		Level(zerolog.TraceLevel).
		With().Timestamp().Logger()
}

type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

// LogRecorder captures JSON log lines for assertions.
type LogRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewRecordingLogger returns a trace-level logger writing into a LogRecorder.
func NewRecordingLogger() (zerolog.Logger, *LogRecorder) {
	rec := &LogRecorder{}
	return zerolog.New(rec).Level(zerolog.TraceLevel), rec
}

// Write implements io.Writer.
func (r *LogRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Entries decodes every captured line. Lines that are not JSON objects
// are skipped.
func (r *LogRecorder) Entries() []map[string]any {
	r.mu.Lock()
	data := bytes.Clone(r.buf.Bytes())
	r.mu.Unlock()

	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// Messages returns the message of every captured entry, in order.
func (r *LogRecorder) Messages() []string {
	var msgs []string
	for _, entry := range r.Entries() {
		if msg, ok := entry[zerolog.MessageFieldName].(string); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Find returns the first entry with message msg.
func (r *LogRecorder) Find(msg string) (map[string]any, bool) {
	for _, entry := range r.Entries() {
		if entry[zerolog.MessageFieldName] == msg {
			return entry, true
		}
	}
	return nil, false
}
