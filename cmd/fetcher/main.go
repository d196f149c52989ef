// Fetcher polls the Eufy Security cloud and forwards device telemetry to
// InfluxDB and MQTT.
//
// Usage:
//
//	fetcher [run]            poll on a schedule and serve the ops API
//	fetcher once             run a single cycle and print the result
//	fetcher token --subject  mint an ops API token
//
// Configuration is read from configs/config.yaml (override with --config or
// FETCHER_CONFIG) and FETCHER_* environment variables. A .env file in the
// working directory is loaded first when present.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic // cancel is called explicitly above
	}
}
