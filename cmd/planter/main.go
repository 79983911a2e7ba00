// Planter Core - autonomous plant watering appliance
//
// This is the main entry point for the Planter Core application. It reads
// the sensors on a fixed cadence, waters plants that are due or dry, and
// publishes the appliance status to the configured outlets.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/planter-core/migrations"

	"github.com/nerrad567/planter-core/internal/api"
	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/history"
	"github.com/nerrad567/planter-core/internal/infrastructure/config"
	"github.com/nerrad567/planter-core/internal/infrastructure/database"
	"github.com/nerrad567/planter-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/planter-core/internal/infrastructure/logging"
	"github.com/nerrad567/planter-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/planter-core/internal/metrics"
	"github.com/nerrad567/planter-core/internal/monitor"
	"github.com/nerrad567/planter-core/internal/plant"
	"github.com/nerrad567/planter-core/internal/reporter"
	"github.com/nerrad567/planter-core/internal/scheduler"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// loopStopTimeout bounds the wait for the monitoring loop to release the
// hardware after shutdown is requested.
const loopStopTimeout = 45 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Planter Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database. No path keeps state in memory for this process only.
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = database.MemoryPath
		log.Warn("no database path configured, plant state will not survive a restart")
	}
	db, err := database.Open(ctx, database.Config{
		Path:        dbPath,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", dbPath)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise plant registry
	registry := plant.NewRegistry(plant.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading plant registry: %w", loadErr)
	}
	seeded, err := registry.Seed(ctx, plant.FromConfig(cfg.Plants))
	if err != nil {
		return fmt.Errorf("seeding plant registry: %w", err)
	}
	log.Info("plant registry initialised", "plants", registry.Count(), "seeded", seeded)
	events := plant.NewSQLiteEventRepository(db.DB)

	// Initialise hardware
	hw, err := hardware.New(cfg.Hardware)
	if err != nil {
		return fmt.Errorf("initialising hardware: %w", err)
	}
	log.Info("hardware initialised", "mode", hw.Mode())

	sched := scheduler.New(hw, registry, events, scheduler.Config{
		FlowRateMLPerSecond:  cfg.Hardware.FlowRateMLPerSecond,
		SafetyTimeout:        cfg.PumpSafetyTimeout(),
		InterActivationDelay: cfg.InterActivationDelay(),
		Rule:                 scheduler.Rule{MoistureCooldown: cfg.MoistureCooldown()},
	})
	sched.SetLogger(log)

	met := metrics.New(cfg.Site.ID)
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Outbound integrations are optional. A broker or InfluxDB server that is down
	// at startup disables that outlet; monitoring carries on without it.
	checks := map[string]api.HealthChecker{"database": db}
	outlets := []monitor.Reporter{reporter.NewHub(hub)}

	mqttClient := connectMQTT(ctx, cfg, log)
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		checks["mqtt"] = mqttClient
		outlets = append(outlets, guard(cfg, "mqtt", reporter.NewMQTT(mqttClient, mqttClient.Topics()), log))
	}

	influxClient := connectInfluxDB(ctx, cfg, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		checks["influxdb"] = influxClient
		outlets = append(outlets, guard(cfg, "influxdb", reporter.NewInflux(influxClient, cfg.Site.ID), log))
	}

	if cfg.Reporter.Endpoint != "" {
		web := reporter.NewHTTP(cfg.Reporter.Endpoint, time.Duration(cfg.Reporter.Timeout)*time.Second)
		outlets = append(outlets, guard(cfg, "http", web, log))
		log.Info("web reporter enabled", "url", web.URL())
	}

	loop, err := monitor.New(monitor.Config{
		Site:      cfg.Site.ID,
		Interval:  cfg.MonitoringInterval(),
		AutoStart: cfg.Monitoring.AutoStart,
	}, monitor.Deps{
		Hardware:  hw,
		Plants:    registry,
		Scheduler: sched,
		History:   history.New(history.DefaultCapacity),
		Reporter:  reporter.NewMulti(outlets...),
		Metrics:   met,
		Logger:    log,
	})
	if err != nil {
		_ = hw.Close() //nolint:errcheck // Loop never took ownership
		return fmt.Errorf("creating monitor: %w", err)
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		select {
		case <-loop.Done():
		case <-time.After(loopStopTimeout):
			log.Error("monitoring loop did not stop in time")
		}
	}()

	if mqttClient != nil {
		if subErr := reporter.SubscribeCommands(ctx, mqttClient, mqttClient.Topics(),
			byte(cfg.MQTT.QoS), loop, log); subErr != nil {
			log.Warn("MQTT command subscription failed", "error", subErr)
		}
	}

	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Monitor:  loop,
			Plants:   registry,
			Events:   events,
			Metrics:  met.Handler(),
			Hub:      hub,
			Checks:   checks,
			Settings: redacted(cfg),
			Version:  version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, checks); err != nil {
		log.Warn("health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case runErr := <-loopErr:
		if runErr == nil {
			runErr = errors.New("stopped unexpectedly")
		}
		return fmt.Errorf("monitoring loop exited: %w", runErr)
	}

	// Deferred calls run in reverse order: API server, monitoring loop
	// (indicator off, hardware released), InfluxDB, MQTT, database.
	log.Info("Planter Core stopping")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PLANTER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PLANTER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func connectMQTT(ctx context.Context, cfg *config.Config, log *logging.Logger) *mqtt.Client {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT disabled")
		return nil
	}
	client, err := mqtt.Connect(ctx, cfg.MQTT, mqtt.Topics{Site: cfg.Site.ID})
	if err != nil {
		log.Warn("MQTT unavailable, continuing without it", "error", err)
		return nil
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client
}

func connectInfluxDB(ctx context.Context, cfg *config.Config, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		return nil
	case err != nil:
		log.Warn("InfluxDB unavailable, continuing without it", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client
}

func guard(cfg *config.Config, name string, r monitor.Reporter, log *logging.Logger) *reporter.Guarded {
	return reporter.NewGuarded(name, r, cfg.Reporter.Retry, cfg.Reporter.Breaker, log)
}

// redacted returns a copy of cfg safe to serve over the API.
func redacted(cfg *config.Config) config.Config {
	c := *cfg
	if c.MQTT.Auth.Password != "" {
		c.MQTT.Auth.Password = "[redacted]"
	}
	if c.InfluxDB.Token != "" {
		c.InfluxDB.Token = "[redacted]"
	}
	return c
}

// healthCheck verifies every registered component, returning the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, hc := range checks {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
