package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-fetcher/internal/device"
)

// sourceParam returns the ?source query value or the server's default source.
func (s *Server) sourceParam(r *http.Request) string {
	if v := r.URL.Query().Get("source"); v != "" {
		return v
	}
	return s.source
}

// handleListDevices returns the inventory for one source.
//
// Query parameters:
//   - source: inventory source (default: the collector's source)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeUnavailable(w, "device inventory not configured")
		return
	}

	devices := s.devices.List(s.sourceParam(r))
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device with its last mapped fields.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeUnavailable(w, "device inventory not configured")
		return
	}

	serial := chi.URLParam(r, "serial")
	d, err := s.devices.Get(r.Context(), s.sourceParam(r), serial)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to get device", "device_sn", serial, "error", err)
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDeviceHistory returns the newest recorded field snapshots.
//
// Query parameters:
//   - source: inventory source
//   - limit: max entries (default 50, max 200)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeUnavailable(w, "device inventory not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	serial := chi.URLParam(r, "serial")
	history, err := s.devices.History(r.Context(), s.sourceParam(r), serial, limit)
	if err != nil {
		s.logger.Error("failed to get device history", "device_sn", serial, "error", err)
		writeInternalError(w, "failed to get device history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history, "count": len(history)})
}
