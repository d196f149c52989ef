package collector

import (
	"context"
	"sync"
	"time"
)

const defaultInterval = 5 * time.Minute

// Runner runs one cycle. *Collector satisfies it.
type Runner interface {
	RunCycle(ctx context.Context, trigger string) Result
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	// Interval between scheduled cycles.
	// Default: 5 minutes.
	Interval time.Duration

	// RunOnStart runs a cycle as soon as Start is called.
	RunOnStart bool
}

// Scheduler runs cycles on a fixed interval and on demand.
// Cycles never overlap; manual triggers received while a cycle is
// running collapse into one follow-up cycle.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool

	trigger chan struct{}

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// NewScheduler creates a scheduler for runner.
//
// Parameters:
//   - runner: Executes cycles (normally a *Collector)
//   - cfg: Interval and start behaviour
//
// Returns:
//   - *Scheduler: Ready to start (call Start to begin polling)
func NewScheduler(runner Runner, cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: cfg.RunOnStart,
		trigger:    make(chan struct{}, 1),
		done:       make(chan struct{}),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler. Call before Start.
func (s *Scheduler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Interval returns the polling interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start begins the polling loop. It stops when ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop ends the polling loop and waits for an in-flight cycle to finish.
// Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

// Trigger requests an immediate cycle. It reports false when a request is
// already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Cycles run under a context that Stop also cancels.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-runCtx.Done():
		}
	}()

	if s.runOnStart {
		s.run(runCtx, TriggerStartup)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			s.run(runCtx, TriggerSchedule)
		case <-s.trigger:
			s.run(runCtx, TriggerManual)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	res := s.runner.RunCycle(ctx, trigger)
	s.logger.Debug("scheduled cycle finished",
		"trigger", trigger, "ok", res.OK, "devices", res.Devices)
}
