// Package influxdb provides the InfluxDB metric sink for the fetcher.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched point writes, and health monitoring.
//
// # Purpose
//
// This package stores:
//   - Device telemetry points (one per device per cycle, e.g. "eufy_device")
//   - Collector cycle statistics ("fetcher_cycle")
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "fetcher",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePoint("eufy_device", tags, fields, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback (SetOnError). Connection and health check errors are returned
// directly.
package influxdb
