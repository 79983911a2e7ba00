package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/planter-core/internal/infrastructure/config"
	"github.com/nerrad567/planter-core/internal/infrastructure/influxdb"
)

// fakeServer answers /ping and records bodies posted to /api/v2/write.
type fakeServer struct {
	*httptest.Server

	mu      sync.Mutex
	writes  []string
	healthy bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{healthy: true}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			fs.mu.Lock()
			ok := fs.healthy
			fs.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			fs.mu.Lock()
			fs.writes = append(fs.writes, string(body))
			fs.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) setHealthy(ok bool) {
	fs.mu.Lock()
	fs.healthy = ok
	fs.mu.Unlock()
}

func (fs *fakeServer) body() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return strings.Join(fs.writes, "\n")
}

// waitForBody polls until the recorded writes contain every want string.
func (fs *fakeServer) waitForBody(t *testing.T, want ...string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		got := fs.body()
		ok := true
		for _, w := range want {
			if !strings.Contains(got, w) {
				ok = false
				break
			}
		}
		if ok {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("write body = %q, want it to contain %q", got, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "planter",
		Bucket:        "telemetry",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, fs *fakeServer) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	fs := newFakeServer(t)
	fs.setHealthy(false)

	_, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := influxdb.Connect(ctx, testConfig("http://127.0.0.1:19997"))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestHealthCheck_ServerGoesDown(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	fs.setHealthy(false)
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() = nil with unhealthy server")
	}
}

func TestWriteReading(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	client.WriteReading(influxdb.ReadingPoint{
		Site:            "greenhouse",
		At:              time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		TemperatureC:    22.5,
		HumidityPct:     55,
		SoilMoisturePct: 42.5,
		LightLux:        800,
		WaterTankPct:    66.7,
		Faults:          1,
	})
	client.Flush()

	fs.waitForBody(t,
		"sensor_reading,site=greenhouse",
		"soil_moisture=42.5",
		"temperature=22.5",
		"faults=1i",
	)
}

func TestWriteWatering(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	client.WriteWatering(influxdb.WateringPoint{
		Site:     "greenhouse",
		Plant:    "Basil",
		Position: 2,
		PumpID:   1,
		Trigger:  "moisture",
		Duration: 1500 * time.Millisecond,
		WaterML:  150.5,
		Success:  true,
	})
	client.Flush()

	fs.waitForBody(t,
		"watering,",
		"plant=Basil",
		"position=2",
		"trigger=moisture",
		"duration_ms=1500i",
		"water_ml=150.5",
		"success=true",
	)
}

func TestWriteAfterClose(t *testing.T) {
	fs := newFakeServer(t)
	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Must not panic or send anything.
	client.WriteReading(influxdb.ReadingPoint{Site: "x"})
	client.Flush()
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
	if strings.Contains(fs.body(), "site=x") {
		t.Error("point written after Close()")
	}
}

func TestCloseNil(t *testing.T) {
	var c *influxdb.Client
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("nil IsConnected() = true")
	}
}
