package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines device persistence.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns one device. Returns ErrDeviceNotFound if absent.
	Get(ctx context.Context, source, serial string) (*Device, error)

	// List returns devices ordered by source then serial. An empty source
	// lists every source.
	List(ctx context.Context, source string) ([]Device, error)

	// Upsert inserts the device or refreshes an existing row. FirstSeen
	// of an existing row is never changed.
	Upsert(ctx context.Context, device *Device) error

	// DeleteStale removes devices of source not seen since before.
	DeleteStale(ctx context.Context, source string, before time.Time) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDevice = `
	SELECT source, serial_number, name, model, station_serial, cover_path,
		state, first_seen, last_seen
	FROM devices`

// Get retrieves a device by source and serial number.
func (r *SQLiteRepository) Get(ctx context.Context, source, serial string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, selectDevice+" WHERE source = ? AND serial_number = ?", source, serial)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	return d, nil
}

// List retrieves devices, optionally restricted to one source.
func (r *SQLiteRepository) List(ctx context.Context, source string) ([]Device, error) {
	query := selectDevice
	var args []any
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY source, serial_number"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert inserts or updates a device row.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	state := d.State
	if state == nil {
		state = State{}
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	if d.LastSeen.IsZero() {
		d.LastSeen = time.Now().UTC()
	}
	if d.FirstSeen.IsZero() {
		d.FirstSeen = d.LastSeen
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (
			source, serial_number, name, model, station_serial, cover_path,
			state, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, serial_number) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			station_serial = excluded.station_serial,
			cover_path = excluded.cover_path,
			state = excluded.state,
			last_seen = excluded.last_seen`,
		d.Source, d.SerialNumber, d.Name, d.Model, d.StationSerial, d.CoverPath,
		string(stateJSON), formatTime(d.FirstSeen), formatTime(d.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// DeleteStale removes devices that dropped out of the vendor listing.
func (r *SQLiteRepository) DeleteStale(ctx context.Context, source string, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM devices WHERE source = ? AND last_seen < ?",
		source, formatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting stale devices: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var stateJSON, firstSeen, lastSeen string

	if err := s.Scan(&d.Source, &d.SerialNumber, &d.Name, &d.Model, &d.StationSerial,
		&d.CoverPath, &stateJSON, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(stateJSON), &d.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	var err error
	if d.FirstSeen, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if d.LastSeen, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	return &d, nil
}
