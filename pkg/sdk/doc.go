// Package sdk embeds the rtmon runtime agent into a Go application.
//
// The SDK starts memory sampling and GC monitoring for the current process
// and, when enabled, an HTTP debug server with trigger routes for CPU
// profiles, heap snapshots and agent status (see pkg/sdk/debug).
//
// Basic integration:
//
//	import "github.com/coral-mesh/rtmon/pkg/sdk"
//
//	func main() {
//	    monitor, err := sdk.Start("checkout")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer monitor.Close()
//
//	    http.ListenAndServe(":8080", handler)
//	}
//
// Custom configuration:
//
//	cfg, _ := config.Load("rtmon.yaml")
//	monitor, err := sdk.New(sdk.Config{
//	    ServiceName: "checkout",
//	    Agent:       cfg,
//	    EnableDebug: true,
//	    Logger:      logger,
//	})
//
// Samples go to the reporters enabled in the configuration: the log
// reporter by default, plus the HTTP endpoint, Prometheus and OpenTelemetry
// sinks when configured.
package sdk
