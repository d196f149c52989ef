package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// maxHistoryPerDevice bounds storage at roughly a week of 5-minute polls.
	maxHistoryPerDevice = 2016
)

// SQLiteStateHistoryRepository implements StateHistoryRepository using SQLite.
type SQLiteStateHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteStateHistoryRepository creates a new SQLite state history repository.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db}
}

// RecordState inserts a snapshot for a device.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - source, serial: Device key
//   - state: Snapshot to persist (nil is stored as {})
//   - at: Observation time; zero means now
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteStateHistoryRepository) RecordState(ctx context.Context, source, serial string, state State, at time.Time) error {
	if source == "" || serial == "" {
		return fmt.Errorf("%w: source and serial number are required", ErrInvalidDevice)
	}
	if state == nil {
		state = State{}
	}
	if at.IsZero() {
		at = time.Now()
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO state_history (source, serial_number, state, created_at) VALUES (?, ?, ?, ?)",
		source, serial, string(stateJSON), formatTime(at),
	); err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM state_history
		WHERE source = ? AND serial_number = ? AND id NOT IN (
			SELECT id FROM state_history
			WHERE source = ? AND serial_number = ?
			ORDER BY id DESC LIMIT ?
		)`,
		source, serial, source, serial, maxHistoryPerDevice,
	); err != nil {
		return fmt.Errorf("trimming state history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing state history: %w", err)
	}
	return nil
}

// GetHistory returns recent entries for a device, newest first.
// limit defaults to 50 and is capped at 200.
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, source, serial string, limit int) ([]StateHistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, serial_number, state, created_at
		FROM state_history
		WHERE source = ? AND serial_number = ?
		ORDER BY id DESC
		LIMIT ?`,
		source, serial, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var entry StateHistoryEntry
		var stateJSON, createdAt string

		if err := rows.Scan(&entry.ID, &entry.Source, &entry.SerialNumber, &stateJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes entries older than now-olderThan.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM state_history WHERE created_at < ?",
		formatTime(time.Now().Add(-olderThan)),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
