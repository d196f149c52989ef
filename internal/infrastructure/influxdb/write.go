package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// CycleMeasurement is the measurement for per-cycle collector statistics.
const CycleMeasurement = "fetcher_cycle"

// WritePoint writes a point with full control over tags, fields and time.
//
// This is the primary method for recording device telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
// A zero timestamp means "now".
//
// Parameters:
//   - measurement: The measurement name (e.g., "eufy_device")
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the data (int64, float64, string, bool)
//   - timestamp: The time of the observation
//
// Example:
//
//	client.WritePoint("eufy_device",
//	    map[string]string{"device_sn": "T8113N1234"},
//	    map[string]any{"battery": int64(87)},
//	    time.Now())
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	if len(fields) == 0 {
		// A point without fields is rejected by the server.
		return
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

// CycleStats summarizes one collection cycle.
type CycleStats struct {
	Source   string
	OK       bool
	Devices  int
	Skipped  int
	Duration time.Duration
	Err      string
}

// WriteCycle records the outcome of a collection cycle.
//
// Tags: source, outcome ("ok" or "error").
// Fields: devices, skipped, duration_ms, and error when set.
func (c *Client) WriteCycle(stats CycleStats, timestamp time.Time) {
	outcome := "ok"
	if !stats.OK {
		outcome = "error"
	}

	fields := map[string]any{
		"devices":     int64(stats.Devices),
		"skipped":     int64(stats.Skipped),
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if stats.Err != "" {
		fields["error"] = stats.Err
	}

	c.WritePoint(CycleMeasurement, map[string]string{
		"source":  stats.Source,
		"outcome": outcome,
	}, fields, timestamp)
}
