package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-fetcher/internal/device"
	"github.com/nerrad567/gray-logic-fetcher/internal/eufy"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/mqtt"
)

// Sink receives collected devices and cycle outcomes.
type Sink interface {
	Name() string
	WriteDevice(ctx context.Context, dev eufy.Device, m eufy.Metric) error
	WriteCycle(ctx context.Context, res Result) error
}

// =============================================================================
// InfluxDB
// =============================================================================

// PointWriter is the part of *influxdb.Client the InfluxDB sink uses.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
	WriteCycle(stats influxdb.CycleStats, ts time.Time)
}

// InfluxSink writes one point per device and one per cycle.
// Writes are batched by the client; errors surface via its OnError callback.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink wraps w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Name implements Sink.
func (s *InfluxSink) Name() string { return "influxdb" }

// WriteDevice implements Sink.
func (s *InfluxSink) WriteDevice(_ context.Context, _ eufy.Device, m eufy.Metric) error {
	s.w.WritePoint(m.Measurement, m.Tags, m.Fields, m.Time)
	return nil
}

// WriteCycle implements Sink.
func (s *InfluxSink) WriteCycle(_ context.Context, res Result) error {
	s.w.WriteCycle(influxdb.CycleStats{
		Source:   res.Source,
		OK:       res.OK,
		Devices:  res.Devices,
		Skipped:  res.Skipped,
		Duration: res.Duration,
		Err:      res.ErrorKind,
	}, res.StartedAt)
	return nil
}

// =============================================================================
// MQTT
// =============================================================================

// JSONPublisher is the part of *mqtt.Client the MQTT sink uses.
type JSONPublisher interface {
	PublishJSON(topic string, v any) error
}

// MQTTSink publishes retained device state and source health.
type MQTTSink struct {
	pub    JSONPublisher
	source string
}

// NewMQTTSink wraps pub. source selects the topic branch, e.g. "eufy".
func NewMQTTSink(pub JSONPublisher, source string) *MQTTSink {
	if source == "" {
		source = DefaultSource
	}
	return &MQTTSink{pub: pub, source: source}
}

// DeviceStateMessage is the retained payload on a device state topic.
type DeviceStateMessage struct {
	DeviceSN  string         `json:"device_sn"`
	Name      string         `json:"name"`
	Model     string         `json:"model"`
	Station   string         `json:"station_sn,omitempty"`
	Fields    map[string]any `json:"fields"`
	Timestamp time.Time      `json:"timestamp"`
}

// HealthMessage is the retained payload on a source health topic.
type HealthMessage struct {
	Status    string    `json:"status"`
	CycleID   string    `json:"cycle_id"`
	Devices   int       `json:"devices"`
	Skipped   int       `json:"skipped"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// WriteDevice implements Sink.
func (s *MQTTSink) WriteDevice(_ context.Context, dev eufy.Device, m eufy.Metric) error {
	msg := DeviceStateMessage{
		DeviceSN:  dev.SerialNumber,
		Name:      dev.DisplayName,
		Model:     dev.Model,
		Station:   dev.StationSerial,
		Fields:    m.Fields,
		Timestamp: m.Time.UTC(),
	}
	if err := s.pub.PublishJSON(mqtt.Topics{}.DeviceState(s.source, dev.SerialNumber), msg); err != nil {
		return fmt.Errorf("publishing device state: %w", err)
	}
	return nil
}

// WriteCycle implements Sink.
func (s *MQTTSink) WriteCycle(_ context.Context, res Result) error {
	msg := HealthMessage{
		Status:    res.Outcome(),
		CycleID:   res.ID,
		Devices:   res.Devices,
		Skipped:   res.Skipped,
		ErrorKind: res.ErrorKind,
		Timestamp: res.StartedAt.UTC(),
	}
	if err := s.pub.PublishJSON(mqtt.Topics{}.SourceHealth(s.source), msg); err != nil {
		return fmt.Errorf("publishing health: %w", err)
	}
	return nil
}

// =============================================================================
// Device inventory
// =============================================================================

// Inventory is the part of *device.Registry the inventory sink uses.
type Inventory interface {
	Observe(ctx context.Context, d device.Device, at time.Time) error
	Prune(ctx context.Context, source string, before time.Time) (int64, error)
}

// InventorySink records devices in the local inventory and, after a clean
// cycle, drops devices that no longer appear in the listing.
type InventorySink struct {
	inv    Inventory
	source string
}

// NewInventorySink wraps inv.
func NewInventorySink(inv Inventory, source string) *InventorySink {
	if source == "" {
		source = DefaultSource
	}
	return &InventorySink{inv: inv, source: source}
}

// Name implements Sink.
func (s *InventorySink) Name() string { return "inventory" }

// WriteDevice implements Sink.
func (s *InventorySink) WriteDevice(ctx context.Context, dev eufy.Device, m eufy.Metric) error {
	return s.inv.Observe(ctx, device.Device{
		Source:        s.source,
		SerialNumber:  dev.SerialNumber,
		Name:          dev.DisplayName,
		Model:         dev.Model,
		StationSerial: dev.StationSerial,
		CoverPath:     dev.CoverPath,
		State:         device.State(m.Fields),
	}, m.Time)
}

// WriteCycle implements Sink. Only a cycle that saw every device prunes.
func (s *InventorySink) WriteCycle(ctx context.Context, res Result) error {
	if !res.OK || res.Skipped > 0 {
		return nil
	}
	if _, err := s.inv.Prune(ctx, s.source, res.StartedAt); err != nil {
		return fmt.Errorf("pruning inventory: %w", err)
	}
	return nil
}
