package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-fetcher/internal/audit"
	"github.com/nerrad567/gray-logic-fetcher/internal/collector"
	"github.com/nerrad567/gray-logic-fetcher/internal/device"
	"github.com/nerrad567/gray-logic-fetcher/internal/eufy"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fetcher/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StatusProvider reports collector status. *collector.Collector satisfies it.
type StatusProvider interface {
	Status() collector.Status
}

// SessionController exposes the Eufy session. *eufy.SessionManager satisfies it.
type SessionController interface {
	Snapshot() eufy.Snapshot
	Invalidate(reason string)
}

// PollTrigger requests an out-of-schedule cycle. *collector.Scheduler satisfies it.
type PollTrigger interface {
	Trigger() bool
}

// DeviceInventory is the read side of *device.Registry.
type DeviceInventory interface {
	Get(ctx context.Context, source, serial string) (*device.Device, error)
	List(source string) []device.Device
	History(ctx context.Context, source, serial string, limit int) ([]device.StateHistoryEntry, error)
	Count() int
}

// HealthChecker is implemented by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DBStatser exposes connection pool statistics. *database.DB satisfies it.
type DBStatser interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	// Source is the default inventory source for device routes.
	Source string

	Collector StatusProvider
	Sessions  SessionController
	Poller    PollTrigger
	Devices   DeviceInventory
	AuditRepo audit.Repository
	DB        DBStatser

	// Checks are reported by /health, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the ops HTTP server.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	source    string
	collector StatusProvider
	sessions  SessionController
	poller    PollTrigger
	devices   DeviceInventory
	auditRepo audit.Repository
	db        DBStatser
	checks    map[string]HealthChecker
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger is required; every other component is optional
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	source := deps.Source
	if source == "" {
		source = collector.DefaultSource
	}

	return &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		source:    source,
		collector: deps.Collector,
		sessions:  deps.Sessions,
		poller:    deps.Poller,
		devices:   deps.Devices,
		auditRepo: deps.AuditRepo,
		db:        deps.DB,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// Returns:
//   - error: Always nil; listener errors are logged
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
