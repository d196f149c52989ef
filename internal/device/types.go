package device

import (
	"fmt"
	"maps"
	"time"
)

// State is the last set of metric fields mapped for a device.
type State map[string]any

// Device is one inventory entry, keyed by (Source, SerialNumber).
type Device struct {
	// Source names the cloud the device came from, e.g. "eufy".
	Source       string `json:"source"`
	SerialNumber string `json:"serial_number"`

	Name          string `json:"name"`
	Model         string `json:"model"`
	StationSerial string `json:"station_serial,omitempty"`

	// CoverPath is the vendor URL of the latest event thumbnail.
	CoverPath string `json:"cover_path,omitempty"`

	State State `json:"state,omitempty"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Key returns the composite identifier used by the cache.
func (d *Device) Key() string {
	return key(d.Source, d.SerialNumber)
}

// Validate checks the fields the store needs.
func (d *Device) Validate() error {
	if d.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidDevice)
	}
	if d.SerialNumber == "" {
		return fmt.Errorf("%w: serial number is required", ErrInvalidDevice)
	}
	return nil
}

// DeepCopy returns a copy that shares no mutable state with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	c := *d
	c.State = maps.Clone(d.State)
	return &c
}

func key(source, serial string) string {
	return source + "/" + serial
}

// storedTimeLayout keeps timestamps lexically sortable in SQLite.
const storedTimeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(storedTimeLayout, s)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339, s); rfcErr == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
}
