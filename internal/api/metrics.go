package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Collector     CollectorMetrics `json:"collector"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// CollectorMetrics summarizes polling without exposing error text.
type CollectorMetrics struct {
	Cycles         int    `json:"cycles"`
	Running        bool   `json:"running"`
	LastOutcome    string `json:"last_outcome,omitempty"`
	LastDevices    int    `json:"last_devices"`
	LastDurationMS int64  `json:"last_duration_ms"`
	SessionState   string `json:"session_state,omitempty"`
	Logins         int    `json:"logins"`
	Devices        int    `json:"devices"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns runtime and polling counters.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.collector != nil {
		st := s.collector.Status()
		metrics.Collector.Cycles = st.Cycles
		metrics.Collector.Running = st.Running
		if st.LastResult != nil {
			metrics.Collector.LastOutcome = st.LastResult.Outcome()
			metrics.Collector.LastDevices = st.LastResult.Devices
			metrics.Collector.LastDurationMS = st.LastResult.Duration.Milliseconds()
		}
	}
	if s.sessions != nil {
		snap := s.sessions.Snapshot()
		metrics.Collector.SessionState = snap.State
		metrics.Collector.Logins = snap.Logins
	}
	if s.devices != nil {
		metrics.Collector.Devices = s.devices.Count()
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
