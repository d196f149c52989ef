// Package audit records collection cycles and session resets in the
// audit_logs table and serves them back for the ops API.
package audit

import (
	"context"
	"time"
)

// Actions recorded by the fetcher.
const (
	ActionCycle        = "cycle"
	ActionSessionReset = "session_reset"
	ActionManualPoll   = "manual_poll"
)

// Outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomePartial = "partial"
)

// AuditLog represents a single audit trail entry.
type AuditLog struct { //nolint:revive // audit.AuditLog is clearer than audit.Log in calling code
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Source    string         `json:"source"`
	Outcome   string         `json:"outcome"`
	ErrorKind string         `json:"error_kind,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which audit logs to return.
type Filter struct {
	Action  string // optional
	Source  string // optional
	Outcome string // optional
	Limit   int    // default 50, max 200
	Offset  int
}

// ListResult contains the paginated audit log results.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository defines the interface for audit log operations.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
