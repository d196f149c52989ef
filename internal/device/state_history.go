package device

import (
	"context"
	"time"
)

// StateHistoryEntry is one recorded snapshot of a device's metric fields.
type StateHistoryEntry struct {
	ID           int64     `json:"id"`
	Source       string    `json:"source"`
	SerialNumber string    `json:"serial_number"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves per-device field history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordState appends a snapshot and trims the device's history to
	// the newest maxHistoryPerDevice entries.
	RecordState(ctx context.Context, source, serial string, state State, at time.Time) error

	// GetHistory returns up to limit entries, newest first.
	GetHistory(ctx context.Context, source, serial string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than olderThan across all devices.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
