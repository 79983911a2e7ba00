package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/planter-core/internal/api"
	"github.com/nerrad567/planter-core/internal/infrastructure/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PLANTER_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_InvalidHardwareMode verifies validation stops startup.
func TestRun_InvalidHardwareMode(t *testing.T) {
	t.Setenv("PLANTER_CONFIG", writeConfig(t, `
site:
  id: test-site
hardware:
  mode: quantum
`))
	t.Setenv("PLANTER_HARDWARE_MODE", "")

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail with an unknown hardware mode")
	}
	if !strings.Contains(err.Error(), "hardware.mode") {
		t.Errorf("error = %v, want hardware.mode complaint", err)
	}
}

// TestRun_SimulatedStartupAndShutdown runs the whole appliance against
// simulated hardware with every network outlet switched off.
func TestRun_SimulatedStartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planter.db")
	t.Setenv("PLANTER_CONFIG", writeConfig(t, `
site:
  id: test-site
hardware:
  mode: simulated
  seed: 7
monitoring:
  interval: 1
  auto_start: false
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
api:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

// TestRun_RestartKeepsRegistry verifies a second start reuses the stored plants.
func TestRun_RestartKeepsRegistry(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "planter.db")
	t.Setenv("PLANTER_CONFIG", writeConfig(t, `
site:
  id: test-site
monitoring:
  auto_start: false
database:
  path: "`+dbPath+`"
api:
  enabled: false
logging:
  level: error
`))

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		err := run(ctx)
		cancel()
		if err != nil {
			t.Fatalf("run #%d error = %v", i+1, err)
		}
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("PLANTER_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("PLANTER_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestRedacted(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Auth.Password = "hunter2"
	cfg.InfluxDB.Token = "secret-token"

	got := redacted(cfg)
	if got.MQTT.Auth.Password != "[redacted]" {
		t.Errorf("MQTT password = %q, want redacted", got.MQTT.Auth.Password)
	}
	if got.InfluxDB.Token != "[redacted]" {
		t.Errorf("InfluxDB token = %q, want redacted", got.InfluxDB.Token)
	}
	if cfg.MQTT.Auth.Password != "hunter2" {
		t.Error("redacted() modified the loaded config")
	}
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("down") })

	if err := healthCheck(context.Background(), map[string]api.HealthChecker{"database": ok}); err != nil {
		t.Errorf("healthCheck() error = %v, want nil", err)
	}

	err := healthCheck(context.Background(), map[string]api.HealthChecker{"database": ok, "mqtt": down})
	if err == nil || !strings.Contains(err.Error(), "mqtt: down") {
		t.Errorf("healthCheck() error = %v, want mqtt: down", err)
	}
}
