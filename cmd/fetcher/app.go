package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-fetcher/internal/api"
	"github.com/nerrad567/gray-logic-fetcher/internal/audit"
	"github.com/nerrad567/gray-logic-fetcher/internal/captcha/gemini"
	"github.com/nerrad567/gray-logic-fetcher/internal/collector"
	"github.com/nerrad567/gray-logic-fetcher/internal/device"
	"github.com/nerrad567/gray-logic-fetcher/internal/eufy"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-fetcher/migrations"
)

// stateHistoryRetention bounds how long per-device field snapshots are kept.
const stateHistoryRetention = 7 * 24 * time.Hour

// app holds the wired components. Close releases them in reverse order.
type app struct {
	cfg *config.Config
	log *logging.Logger

	db        *database.DB
	registry  *device.Registry
	history   device.StateHistoryRepository
	auditRepo *audit.SQLiteRepository
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	client    *eufy.Client
	sessions  *eufy.SessionManager
	collector *collector.Collector

	closers []func()
}

// run is the long-running mode: scheduler plus ops API until ctx ends.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	a, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.healthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	a.log.Info("all health checks passed")

	scheduler := collector.NewScheduler(a.collector, collector.SchedulerConfig{
		Interval:   a.cfg.GetPollInterval(),
		RunOnStart: a.cfg.Poll.RunOnStart,
	})
	scheduler.SetLogger(a.log)
	scheduler.Start(ctx)
	defer func() {
		a.log.Info("stopping scheduler")
		scheduler.Stop()
	}()
	a.log.Info("scheduler started",
		"interval", scheduler.Interval(),
		"run_on_start", a.cfg.Poll.RunOnStart,
	)

	if a.cfg.API.Enabled {
		server, err := a.newAPIServer(scheduler)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				a.log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		a.log.Info("ops API disabled")
	}

	a.log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	a.log.Info("shutdown signal received, cleaning up")
	return nil
}

// runOnce runs a single cycle, writes the Result as JSON to out, and
// fails when the cycle did.
func runOnce(ctx context.Context, configPath string, out io.Writer) error {
	a, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.collector.RunCycle(ctx, collector.TriggerManual)
	if a.influx != nil {
		a.influx.Flush()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if !res.OK {
		return fmt.Errorf("cycle failed (%s): %s", res.ErrorKind, res.Error)
	}
	return nil
}

// setup loads configuration and wires every component. On error the
// components created so far are closed.
func setup(ctx context.Context, configPath string) (*app, error) {
	log := logging.Default()
	log.Info("starting fetcher",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Eufy.Enabled {
		return nil, errors.New("eufy is disabled; nothing to collect")
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	a := &app{cfg: cfg, log: log}
	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectSinks(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.wireEufy(ctx)
	a.wireCollector()
	return a, nil
}

// openStore opens SQLite, applies migrations and loads the inventory.
func (a *app) openStore(ctx context.Context) error {
	db, err := database.Open(ctx, database.Config{
		Path:        a.cfg.Database.Path,
		WALMode:     a.cfg.Database.WALMode,
		BusyTimeout: a.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.db = db
	a.onClose(func() {
		a.log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			a.log.Error("error closing database", "error", closeErr)
		}
	})
	a.log.Info("database connected", "path", a.cfg.Database.Path)

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	a.log.Info("database migrations complete")

	a.history = device.NewSQLiteStateHistoryRepository(db.DB)
	a.registry = device.NewRegistry(device.NewSQLiteRepository(db.DB), a.history)
	a.registry.SetLogger(a.log)
	if err := a.registry.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading device inventory: %w", err)
	}
	a.log.Info("device inventory loaded", "devices", a.registry.Count())

	if n, err := a.history.PruneHistory(ctx, stateHistoryRetention); err != nil {
		a.log.Warn("pruning state history failed", "error", err)
	} else if n > 0 {
		a.log.Info("pruned state history", "removed", n)
	}

	a.auditRepo = audit.NewSQLiteRepository(db.DB)
	return nil
}

// connectSinks connects the optional MQTT and InfluxDB outputs.
func (a *app) connectSinks(ctx context.Context) error {
	if a.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(ctx, a.cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		a.mqtt = client
		client.SetLogger(a.log)
		client.SetOnConnect(func() { a.log.Info("MQTT connected") })
		client.SetOnDisconnect(func(err error) { a.log.Warn("MQTT disconnected", "error", err) })
		a.onClose(func() {
			a.log.Info("disconnecting from MQTT")
			if closeErr := client.Close(); closeErr != nil {
				a.log.Error("error closing MQTT", "error", closeErr)
			}
		})
		a.log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", a.cfg.MQTT.Broker.Host, a.cfg.MQTT.Broker.Port),
			"client_id", a.cfg.MQTT.Broker.ClientID,
		)
	} else {
		a.log.Info("MQTT disabled")
	}

	if a.cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(ctx, a.cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		a.influx = client
		client.SetOnError(func(err error) {
			a.log.Error("InfluxDB write error", "error", err)
		})
		a.onClose(func() {
			a.log.Info("closing InfluxDB connection")
			if closeErr := client.Close(); closeErr != nil {
				a.log.Error("error closing InfluxDB", "error", closeErr)
			}
		})
		a.log.Info("InfluxDB connected",
			"url", a.cfg.InfluxDB.URL,
			"org", a.cfg.InfluxDB.Org,
			"bucket", a.cfg.InfluxDB.Bucket,
		)
	} else {
		a.log.Info("InfluxDB disabled")
	}
	return nil
}

// wireEufy builds the vendor client, the session manager and its solver.
func (a *app) wireEufy(ctx context.Context) {
	a.client = eufy.NewClient(eufy.ClientConfig{
		Country:    a.cfg.Eufy.Country,
		DomainBase: a.cfg.Eufy.DomainBase,
		Timeout:    a.cfg.GetRequestTimeout(),
	})
	a.client.SetLogger(a.log)
	a.onClose(a.client.CloseIdleConnections)

	a.sessions = eufy.NewSessionManager(a.client, eufy.SessionConfig{
		Email:          a.cfg.Eufy.Username,
		Password:       a.cfg.Eufy.Password,
		TTL:            a.cfg.GetSessionTTL(),
		CaptchaTimeout: a.cfg.GetCaptchaTimeout(),
		Location:       a.cfg.GetLocation(),
	})
	a.sessions.SetLogger(a.log)

	if solver := a.newSolver(ctx); solver != nil {
		a.sessions.SetSolver(solver)
	}
}

// newSolver returns the configured CAPTCHA solver, or nil to keep the
// manager's default (every challenge unsolved).
func (a *app) newSolver(ctx context.Context) eufy.Solver {
	if a.cfg.Captcha.Provider != "gemini" {
		a.log.Info("captcha solver disabled; challenged logins will fail")
		return nil
	}

	solver, err := gemini.New(ctx, gemini.Config{
		APIKey:  a.cfg.Captcha.APIKey,
		Model:   a.cfg.Captcha.Model,
		Timeout: a.cfg.GetCaptchaTimeout(),
	})
	if err != nil {
		a.log.Warn("captcha solver unavailable; challenged logins will fail", "error", err)
		return nil
	}
	solver.SetLogger(a.log)
	a.log.Info("captcha solver ready", "provider", "gemini", "model", a.cfg.Captcha.Model)
	return solver
}

// wireCollector assembles the sinks and the collector.
func (a *app) wireCollector() {
	sinks := []collector.Sink{collector.NewInventorySink(a.registry, collector.DefaultSource)}
	if a.influx != nil {
		sinks = append(sinks, collector.NewInfluxSink(a.influx))
	}
	if a.mqtt != nil {
		sinks = append(sinks, collector.NewMQTTSink(a.mqtt, collector.DefaultSource))
	}

	a.collector = collector.New(a.client, a.sessions, sinks, a.auditRepo, collector.Config{
		Source:       collector.DefaultSource,
		FetchParams:  a.cfg.Eufy.FetchParams,
		CycleTimeout: a.cfg.GetCycleTimeout(),
	})
	a.collector.SetLogger(a.log)
	a.sessions.SetOnReset(a.collector.HandleSessionReset)
}

// newAPIServer creates the ops API with every available component.
func (a *app) newAPIServer(poller api.PollTrigger) (*api.Server, error) {
	return api.New(api.Deps{
		Config:    a.cfg.API,
		Security:  a.cfg.Security,
		Logger:    a.log,
		Source:    collector.DefaultSource,
		Collector: a.collector,
		Sessions:  a.sessions,
		Poller:    poller,
		Devices:   a.registry,
		AuditRepo: a.auditRepo,
		DB:        a.db,
		Checks:    a.healthCheckers(),
		Version:   version,
	})
}

// healthCheckers returns the checks reported by /health.
func (a *app) healthCheckers() map[string]api.HealthChecker {
	checks := map[string]api.HealthChecker{"database": a.db}
	if a.mqtt != nil {
		checks["mqtt"] = a.mqtt
	}
	if a.influx != nil {
		checks["influxdb"] = a.influx
	}
	return checks
}

// healthCheck verifies every connected component once at startup.
func (a *app) healthCheck(ctx context.Context) error {
	for name, checker := range a.healthCheckers() {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases components in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.log.Info("fetcher stopped")
}
