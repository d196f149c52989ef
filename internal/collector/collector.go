package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-fetcher/internal/audit"
	"github.com/nerrad567/gray-logic-fetcher/internal/eufy"
)

// DefaultSource tags everything this collector produces.
const DefaultSource = "eufy"

const (
	defaultCycleTimeout   = 120 * time.Second
	defaultAuditRetention = 30 * 24 * time.Hour
	auditPruneEvery       = 24 * time.Hour
	auditWriteTimeout     = 5 * time.Second
)

// Triggers recorded on each Result.
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// VendorClient is the part of *eufy.Client a cycle uses.
type VendorClient interface {
	ResolveDomain(ctx context.Context) (string, error)
	ListDevices(ctx context.Context, sess *eufy.Session) ([]eufy.Device, error)
	FetchDeviceParams(ctx context.Context, sess *eufy.Session, dev eufy.Device) ([]eufy.Param, error)
}

// Sessions is the part of *eufy.SessionManager a cycle uses.
type Sessions interface {
	Session(ctx context.Context, origin string) (*eufy.Session, error)
	Invalidate(reason string)
}

// AuditRecorder persists audit entries. audit.Repository satisfies it.
type AuditRecorder interface {
	Create(ctx context.Context, log *audit.AuditLog) error
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Logger defines the logging interface used by the collector.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Collector.
type Config struct {
	// Source names the vendor in tags, topics and audit entries.
	Source string

	// FetchParams requests per-device parameters after the listing.
	FetchParams bool

	// CycleTimeout bounds one whole cycle.
	CycleTimeout time.Duration

	// AuditRetention is how long audit entries are kept.
	AuditRetention time.Duration
}

// Result describes one finished cycle.
type Result struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Trigger   string        `json:"trigger"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	// OK is false when the cycle aborted.
	OK      bool `json:"ok"`
	Devices int  `json:"devices"`
	Skipped int  `json:"skipped"`

	// SinkErrors counts failed sink writes; they do not affect OK.
	SinkErrors int `json:"sink_errors"`

	SessionReset bool   `json:"session_reset"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
}

// Outcome returns the audit outcome for the result.
func (r Result) Outcome() string {
	switch {
	case !r.OK:
		return audit.OutcomeError
	case r.Skipped > 0:
		return audit.OutcomePartial
	default:
		return audit.OutcomeOK
	}
}

// Status is a point-in-time view of the collector.
type Status struct {
	Running    bool    `json:"running"`
	Cycles     int     `json:"cycles"`
	LastResult *Result `json:"last_result,omitempty"`
}

// Collector runs collection cycles. RunCycle is safe to call from several
// goroutines; calls are serialized.
type Collector struct {
	client   VendorClient
	sessions Sessions
	sinks    []Sink
	audit    AuditRecorder
	cfg      Config
	logger   Logger
	now      func() time.Time

	runMu sync.Mutex

	mu        sync.RWMutex
	running   bool
	cycles    int
	last      *Result
	lastPrune time.Time
}

// New creates a Collector. audit may be nil.
func New(client VendorClient, sessions Sessions, sinks []Sink, auditLog AuditRecorder, cfg Config) *Collector {
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}
	if cfg.AuditRetention <= 0 {
		cfg.AuditRetention = defaultAuditRetention
	}
	return &Collector{
		client:   client,
		sessions: sessions,
		sinks:    sinks,
		audit:    auditLog,
		cfg:      cfg,
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger for the collector.
func (c *Collector) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Status returns the collector's current status.
func (c *Collector) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{Running: c.running, Cycles: c.cycles}
	if c.last != nil {
		last := *c.last
		s.LastResult = &last
	}
	return s
}

// RunCycle performs one collection cycle and reports its outcome to the
// sinks and the audit log.
func (c *Collector) RunCycle(ctx context.Context, trigger string) Result {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.setRunning(true)
	defer c.setRunning(false)

	start := c.now()
	res := Result{
		ID:        uuid.NewString(),
		Source:    c.cfg.Source,
		Trigger:   trigger,
		StartedAt: start,
	}

	cycleCtx, cancel := context.WithTimeout(ctx, c.cfg.CycleTimeout)
	err := c.collect(cycleCtx, &res)
	cancel()

	res.Duration = c.now().Sub(start)
	res.OK = err == nil
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = errorKind(err)
		c.logger.Warn("collection cycle failed",
			"cycle_id", res.ID, "kind", res.ErrorKind, "error", err,
			"devices", res.Devices, "session_reset", res.SessionReset)
	} else {
		c.logger.Info("collection cycle complete",
			"cycle_id", res.ID, "trigger", trigger, "devices", res.Devices,
			"skipped", res.Skipped, "duration", res.Duration)
	}

	// Outcome reporting must not be cut short by the caller's cancellation.
	reportCtx, cancelReport := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancelReport()

	for _, sink := range c.sinks {
		if err := sink.WriteCycle(reportCtx, res); err != nil {
			res.SinkErrors++
			c.logger.Warn("sink cycle write failed", "sink", sink.Name(), "error", err)
		}
	}
	c.recordCycle(reportCtx, res)

	c.mu.Lock()
	c.cycles++
	c.last = &res
	c.mu.Unlock()

	return res
}

// collect runs the cycle steps, filling res as it goes.
func (c *Collector) collect(ctx context.Context, res *Result) error {
	origin, err := c.client.ResolveDomain(ctx)
	if err != nil {
		// Domain lookup happens before any session use; never reset here.
		return fmt.Errorf("resolving api domain: %w", err)
	}

	sess, err := c.sessions.Session(ctx, origin)
	if err != nil {
		return fmt.Errorf("obtaining session: %w", err)
	}

	devices, err := c.client.ListDevices(ctx, sess)
	if err != nil {
		c.maybeReset(res, "listing devices", err)
		return fmt.Errorf("listing devices: %w", err)
	}
	c.logger.Debug("eufy devices listed", "count", len(devices))

	for _, dev := range devices {
		if dev.SerialNumber == "" {
			res.Skipped++
			c.logger.Warn("skipping device without serial number", "name", dev.DisplayName)
			continue
		}

		if c.cfg.FetchParams {
			params, err := c.client.FetchDeviceParams(ctx, sess, dev)
			switch {
			case err == nil:
				dev = dev.MergeParams(params)
			case c.maybeReset(res, "fetching device params", err):
				return fmt.Errorf("fetching params for %s: %w", dev.SerialNumber, err)
			case abortsCycle(ctx, err):
				return fmt.Errorf("fetching params for %s: %w", dev.SerialNumber, err)
			default:
				res.Skipped++
				c.logger.Warn("skipping device",
					"device_sn", dev.SerialNumber, "kind", eufy.Kind(err), "error", err)
				continue
			}
		}

		metric := eufy.MapDevice(dev, res.StartedAt)
		for _, sink := range c.sinks {
			if err := sink.WriteDevice(ctx, dev, metric); err != nil {
				res.SinkErrors++
				c.logger.Warn("sink device write failed",
					"sink", sink.Name(), "device_sn", dev.SerialNumber, "error", err)
			}
		}
		res.Devices++
	}
	return nil
}

// maybeReset invalidates the session when err calls for it.
func (c *Collector) maybeReset(res *Result, step string, err error) bool {
	if !eufy.ResetsSession(err) {
		return false
	}
	res.SessionReset = true
	c.sessions.Invalidate(fmt.Sprintf("%s error while %s", eufy.Kind(err), step))
	return true
}

// abortsCycle reports whether a per-device error must stop the cycle
// rather than skip the device.
func abortsCycle(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, eufy.ErrNetwork) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func errorKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return eufy.Kind(err)
}

// HandleSessionReset records a discarded session in the audit log.
// Register it with eufy.SessionManager.SetOnReset.
func (c *Collector) HandleSessionReset(reason string) {
	c.logger.Info("eufy session discarded", "reason", reason)
	if c.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	entry := &audit.AuditLog{
		Action:  audit.ActionSessionReset,
		Source:  c.cfg.Source,
		Outcome: audit.OutcomeOK,
		Details: map[string]any{"reason": reason},
	}
	if err := c.audit.Create(ctx, entry); err != nil {
		c.logger.Warn("recording session reset failed", "error", err)
	}
}

func (c *Collector) recordCycle(ctx context.Context, res Result) {
	if c.audit == nil {
		return
	}

	details := map[string]any{
		"cycle_id":    res.ID,
		"trigger":     res.Trigger,
		"devices":     res.Devices,
		"skipped":     res.Skipped,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.SinkErrors > 0 {
		details["sink_errors"] = res.SinkErrors
	}
	if res.SessionReset {
		details["session_reset"] = true
	}
	if res.Error != "" {
		details["error"] = res.Error
	}

	entry := &audit.AuditLog{
		Action:    audit.ActionCycle,
		Source:    res.Source,
		Outcome:   res.Outcome(),
		ErrorKind: res.ErrorKind,
		Details:   details,
		CreatedAt: res.StartedAt,
	}
	if err := c.audit.Create(ctx, entry); err != nil {
		c.logger.Warn("recording cycle audit failed", "cycle_id", res.ID, "error", err)
	}

	if c.now().Sub(c.lastPrune) < auditPruneEvery {
		return
	}
	c.lastPrune = c.now()
	if n, err := c.audit.Prune(ctx, c.cfg.AuditRetention); err != nil {
		c.logger.Warn("pruning audit log failed", "error", err)
	} else if n > 0 {
		c.logger.Info("pruned audit log", "removed", n)
	}
}

func (c *Collector) setRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}
