// Package debug serves the HTTP trigger routes of an embedded runtime agent.
//
// Routes, relative to the configured base path (default /debug/runtime):
//
//   - GET {base}/cpuprofile starts a CPU capture. The optional seconds query
//     parameter overrides the configured duration. The response body is the
//     artifact path, or a busy message while a capture is running.
//   - GET {base}/heapsnapshot writes a heap snapshot and returns its path.
//   - GET {base}/status returns the agent status as JSON.
//   - GET /metrics serves Prometheus metrics when a metrics handler is set.
//
// Example usage:
//
//	server := debug.NewServer(logger, agent.Controller(), agent.Snapshots(), debug.Options{
//		Addr:   "127.0.0.1:6061",
//		Status: func() any { return agent.Status() },
//	})
//	if err := server.Start(); err != nil {
//		return err
//	}
//	defer server.Stop()
package debug
