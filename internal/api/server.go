package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/infrastructure/config"
	"github.com/nerrad567/planter-core/internal/infrastructure/logging"
	"github.com/nerrad567/planter-core/internal/monitor"
	"github.com/nerrad567/planter-core/internal/plant"
	"github.com/nerrad567/planter-core/internal/scheduler"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// commandTimeout bounds how long a request waits for the loop to run a
// manual watering. Watering every plant can take a while.
const commandTimeout = 5 * time.Minute

// ChannelStatusUpdated carries every snapshot the loop stores.
const ChannelStatusUpdated = "status.updated"

// Monitor is the monitoring loop as seen by the API.
type Monitor interface {
	Status() monitor.StatusSnapshot
	History(n int) []hardware.Reading
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	WaterNow(ctx context.Context, position int) (scheduler.Outcome, error)
	WaterAll(ctx context.Context) ([]scheduler.Outcome, error)
	Subscribe(fn func(monitor.StatusSnapshot))
}

// Plants is the plant registry as seen by the API.
type Plants interface {
	List() []plant.Plant
	Get(position int) (plant.Plant, error)
	Add(ctx context.Context, p plant.Plant) error
	SetActive(ctx context.Context, position int, active bool) (plant.Plant, error)
}

// HealthChecker is any component that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Monitor Monitor
	Plants  Plants
	Events  plant.EventRepository // optional: enables /watering-events
	Metrics http.Handler          // optional: served at /metrics
	Hub     *Hub                  // optional: shared with the WebSocket reporter
	Checks  map[string]HealthChecker
	Settings any // optional: served at /config
	Version  string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	monitor   Monitor
	plants    Plants
	events    plant.EventRepository
	metrics   http.Handler
	checks    map[string]HealthChecker
	settings  any
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	ownHub    bool
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("monitor is required")
	}
	if deps.Plants == nil {
		return nil, fmt.Errorf("plant registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		monitor:   deps.Monitor,
		plants:    deps.Plants,
		events:    deps.Events,
		metrics:   deps.Metrics,
		checks:    deps.Checks,
		settings:  deps.Settings,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.ownHub = true
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler { return s.buildRouter() }

// Start relays loop snapshots to WebSocket clients and starts the HTTP
// listener in a background goroutine. Stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.ownHub {
		go s.hub.Run(srvCtx)
	}
	s.monitor.Subscribe(func(snap monitor.StatusSnapshot) {
		s.hub.Broadcast(ChannelStatusUpdated, snap)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if s.cancel != nil {
		s.cancel()
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
