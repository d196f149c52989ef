package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-fetcher/internal/audit"
	"github.com/nerrad567/gray-logic-fetcher/internal/collector"
	"github.com/nerrad567/gray-logic-fetcher/internal/eufy"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// invalidateReason is recorded when an operator drops the session.
const invalidateReason = "invalidated via ops api"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports "ok" when every configured component answers and
// "degraded" otherwise. Degraded still answers 200: the fetcher keeps
// polling with a sink down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	if len(s.checks) > 0 {
		resp.Components = make(map[string]string, len(s.checks))
		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		slices.Sort(names)

		for _, name := range names {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := s.checks[name].HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Status = "degraded"
				resp.Components[name] = err.Error()
				continue
			}
			resp.Components[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Collector     *collector.Status `json:"collector,omitempty"`
	Session       *eufy.Snapshot    `json:"session,omitempty"`
	Devices       int               `json:"devices"`
}

// handleStatus returns collector progress and the session state.
// The session snapshot never includes the token or the shared secret.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if s.collector != nil {
		st := s.collector.Status()
		resp.Collector = &st
	}
	if s.sessions != nil {
		snap := s.sessions.Snapshot()
		resp.Session = &snap
	}
	if s.devices != nil {
		resp.Devices = s.devices.Count()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInvalidateSession drops the cached Eufy session so the next cycle
// logs in again.
func (s *Server) handleInvalidateSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeUnavailable(w, "eufy session not configured")
		return
	}

	s.sessions.Invalidate(invalidateReason)
	s.logger.Info("eufy session invalidated by operator",
		"subject", subjectFromContext(r.Context()),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

// handlePoll queues an immediate cycle. A request made while another is
// still pending answers 409.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		writeUnavailable(w, "scheduler not running")
		return
	}

	if !s.poller.Trigger() {
		writeError(w, http.StatusConflict, ErrCodeConflict, "a poll is already pending")
		return
	}
	subject := subjectFromContext(r.Context())
	s.logger.Info("manual poll requested", "subject", subject)

	if s.auditRepo != nil {
		entry := &audit.AuditLog{
			Action:  audit.ActionManualPoll,
			Source:  s.source,
			Outcome: audit.OutcomeOK,
			Details: map[string]any{"subject": subject},
		}
		if err := s.auditRepo.Create(r.Context(), entry); err != nil {
			// The poll is already queued; the audit entry is best effort.
			s.logger.Warn("recording manual poll failed", "error", err)
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
