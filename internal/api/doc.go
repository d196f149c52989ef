// Package api implements the fetcher's operations HTTP API.
//
// This package provides:
//   - Liveness and dependency health (public)
//   - Runtime metrics (public)
//   - Collector and Eufy session status
//   - Manual session invalidation and poll trigger
//   - Read access to the device inventory, state history and audit log
//   - HS256 JWT bearer authentication for everything but health and metrics
//
// # Tokens
//
// There is no login endpoint. Operators mint a token with the CLI
// ("fetcher token") using the configured security.jwt.secret.
//
// # Graceful Degradation
//
// Every dependency except the logger is optional. Routes whose backing
// component is missing answer 503 rather than failing at startup, so the
// server runs the same way with MQTT or InfluxDB disabled.
package api
