// Package profiling captures CPU profiles and heap snapshots and writes
// them as artifacts to storage.
//
// Controller guards the process-wide CPU profiler: it allows one capture
// at a time, deflects concurrent requests with a "retry in N seconds"
// message, and exports the finished profile to a fixed path.
// SnapshotWriter writes a heap profile synchronously.
package profiling

import (
	"io"
	"runtime"
	"runtime/pprof"
)

// Profiler is a CPU profiler that can run one capture at a time.
type Profiler interface {
	// Start begins a capture written to w.
	Start(w io.Writer) error
	// Stop ends the capture and flushes it to the writer given to Start.
	Stop()
}

// PprofProfiler is the Go runtime CPU profiler.
type PprofProfiler struct{}

// Start calls pprof.StartCPUProfile. It fails if another CPU profile is
// already active in the process.
func (PprofProfiler) Start(w io.Writer) error {
	return pprof.StartCPUProfile(w)
}

// Stop calls pprof.StopCPUProfile.
func (PprofProfiler) Stop() {
	pprof.StopCPUProfile()
}

// WriteHeapProfile writes the runtime heap profile to w in gzipped pprof
// format. With gcFirst set it runs a collection so the profile reflects
// the live heap as of the last GC.
func WriteHeapProfile(w io.Writer, gcFirst bool) error {
	if gcFirst {
		runtime.GC()
	}
	return pprof.Lookup("heap").WriteTo(w, 0)
}
