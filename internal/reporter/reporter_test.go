package reporter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/infrastructure/config"
	"github.com/nerrad567/planter-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/planter-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/planter-core/internal/monitor"
	"github.com/nerrad567/planter-core/internal/plant"
	"github.com/nerrad567/planter-core/internal/reporter"
	"github.com/nerrad567/planter-core/internal/scheduler"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func snapshot(cycle uint64, waterings ...monitor.WateringResult) monitor.StatusSnapshot {
	r := hardware.Reading{
		Timestamp:        testNow,
		TemperatureC:     22.5,
		HumidityPct:      55,
		SoilMoisturePct:  28,
		LightLux:         640,
		WaterLevelMiddle: true,
		WaterLevelBottom: true,
	}
	last := testNow.Add(-time.Hour)
	return monitor.StatusSnapshot{
		Timestamp:          testNow,
		Site:               "greenhouse",
		Cycle:              cycle,
		LastReading:        &r,
		PlantsNeedingWater: []string{"Peace Lily"},
		Pumps:              scheduler.PumpStatus{Pump2Active: true, LastWatered: &last},
		LastWatering:       waterings,
	}
}

func watering(name string, at time.Time) monitor.WateringResult {
	return monitor.WateringResult{
		Plant: name, Position: 1, PumpID: 2, Trigger: "schedule",
		DurationMS: 3000, WaterML: 300, Success: true, At: at,
	}
}

// --- fakes ---

type publish struct {
	topic    string
	payload  any
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []publish
	err  error

	// failOn fails the given 1-based publish call only.
	failOn int
	calls  int
}

func (f *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.failOn > 0 && f.calls == f.failOn {
		return mqtt.ErrNotConnected
	}
	f.sent = append(f.sent, publish{topic, v, retained})
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, p := range f.sent {
		out[i] = p.topic
	}
	return out
}

type flakyReporter struct {
	mu    sync.Mutex
	calls int
	fails int // fail this many calls, then succeed
	err   error
}

func (f *flakyReporter) Publish(context.Context, monitor.StatusSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails < 0 || f.calls <= f.fails {
		return f.err
	}
	return nil
}

func (f *flakyReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- TransportError / Multi ---

func TestTransportError(t *testing.T) {
	inner := errors.New("broker gone")
	err := &reporter.TransportError{Reporter: "mqtt", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is(TransportError, inner) = false")
	}
	if got := err.Error(); got != "reporter mqtt: broker gone" {
		t.Errorf("Error() = %q", got)
	}
}

func TestMulti_JoinsErrorsAndPublishesToAll(t *testing.T) {
	ok := &flakyReporter{}
	bad1 := &flakyReporter{fails: -1, err: &reporter.TransportError{Reporter: "a", Err: errors.New("down")}}
	bad2 := &flakyReporter{fails: -1, err: &reporter.TransportError{Reporter: "b", Err: errors.New("down")}}

	m := reporter.NewMulti(bad1, nil, ok, bad2)
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	err := m.Publish(context.Background(), snapshot(1))
	if err == nil {
		t.Fatal("Publish() = nil, want joined error")
	}
	if ok.count() != 1 || bad1.count() != 1 || bad2.count() != 1 {
		t.Errorf("calls = %d/%d/%d, want 1 each", bad1.count(), ok.count(), bad2.count())
	}
	var te *reporter.TransportError
	if !errors.As(err, &te) {
		t.Error("joined error does not contain a TransportError")
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := reporter.NewMulti().Publish(context.Background(), snapshot(1)); err != nil {
		t.Errorf("empty Multi Publish() = %v", err)
	}
}

// --- MQTT ---

func TestMQTT_PublishesReadingEventsAndStatus(t *testing.T) {
	pub := &fakePublisher{}
	topics := mqtt.Topics{Site: "greenhouse"}
	r := reporter.NewMQTT(pub, topics)

	s := snapshot(1, watering("Peace Lily", testNow))
	if err := r.Publish(context.Background(), s); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	want := []string{topics.Reading(), topics.WateringEvent(), topics.Status()}
	got := pub.topics()
	if len(got) != len(want) {
		t.Fatalf("topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topic[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !pub.sent[2].retained {
		t.Error("status message not retained")
	}
	if pub.sent[0].retained {
		t.Error("reading message retained")
	}
}

func TestMQTT_RepublishSkipsSentParts(t *testing.T) {
	pub := &fakePublisher{}
	topics := mqtt.Topics{Site: "greenhouse"}
	r := reporter.NewMQTT(pub, topics)

	s := snapshot(1, watering("Peace Lily", testNow))
	_ = r.Publish(context.Background(), s)
	pub.sent = nil

	// Same cycle and watering, e.g. republished after a manual command.
	if err := r.Publish(context.Background(), s); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := pub.topics(); len(got) != 1 || got[0] != topics.Status() {
		t.Errorf("republish topics = %v, want only status", got)
	}
}

func TestMQTT_FailureKeepsPending(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	topics := mqtt.Topics{Site: "greenhouse"}
	r := reporter.NewMQTT(pub, topics)

	err := r.Publish(context.Background(), snapshot(1))
	var te *reporter.TransportError
	if !errors.As(err, &te) || te.Reporter != "mqtt" {
		t.Fatalf("Publish() error = %v, want mqtt TransportError", err)
	}
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Error("error does not wrap ErrNotConnected")
	}

	pub.err = nil
	_ = r.Publish(context.Background(), snapshot(1))
	if got := pub.topics(); len(got) != 2 || got[0] != topics.Reading() {
		t.Errorf("after recovery topics = %v, want reading then status", got)
	}
}

func TestMQTT_RetryResumesAfterDeliveredParts(t *testing.T) {
	topics := mqtt.Topics{Site: "greenhouse"}
	first := watering("Peace Lily", testNow.Add(-time.Minute))
	second := watering("Spider Plant", testNow)
	s := snapshot(1, second, first)

	tests := []struct {
		name   string
		failOn int
		want   []string
	}{
		{"status fails", 4, []string{topics.Status()}},
		{"second watering fails", 3, []string{topics.WateringEvent(), topics.Status()}},
		{"reading fails", 1, []string{topics.Reading(), topics.WateringEvent(), topics.WateringEvent(), topics.Status()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{failOn: tt.failOn}
			r := reporter.NewMQTT(pub, topics)

			if err := r.Publish(context.Background(), s); err == nil {
				t.Fatal("Publish() error = nil, want failure")
			}
			pub.sent = nil

			if err := r.Publish(context.Background(), s); err != nil {
				t.Fatalf("retry Publish() error = %v", err)
			}
			got := pub.topics()
			if len(got) != len(tt.want) {
				t.Fatalf("retry topics = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("retry topic[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if tt.name == "second watering fails" {
				if w, _ := pub.sent[0].payload.(monitor.WateringResult); w.Plant != "Spider Plant" {
					t.Errorf("resent watering = %v, want Spider Plant", pub.sent[0].payload)
				}
			}
		})
	}
}

// --- HTTP ---

func TestHTTP_PostsWebPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != reporter.DataPath {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := reporter.NewHTTP(srv.URL+"/", time.Second)
	if r.URL() != srv.URL+reporter.DataPath {
		t.Errorf("URL() = %q", r.URL())
	}
	if err := r.Publish(context.Background(), snapshot(1)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	sensors, ok := got["sensor_data"].(map[string]any)
	if !ok {
		t.Fatalf("sensor_data missing: %v", got)
	}
	if sensors["soil_moisture"] != 28.0 {
		t.Errorf("soil_moisture = %v, want 28", sensors["soil_moisture"])
	}
	if sensors["water_level"] != 66.7 {
		t.Errorf("water_level = %v, want 66.7", sensors["water_level"])
	}
	plants, _ := got["plant_status"].([]any)
	if len(plants) != 1 || plants[0] != "Peace Lily" {
		t.Errorf("plant_status = %v", got["plant_status"])
	}
	pumps, _ := got["pump_status"].(map[string]any)
	if pumps["pump2_active"] != true || pumps["pump1_active"] != false {
		t.Errorf("pump_status = %v", pumps)
	}
}

func TestHTTP_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		endpoint string
		want     error
	}{
		{"bad status", srv.URL, reporter.ErrUnexpectedStatus},
		{"unreachable", "http://127.0.0.1:19996", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reporter.NewHTTP(tt.endpoint, time.Second).Publish(context.Background(), snapshot(1))
			var te *reporter.TransportError
			if !errors.As(err, &te) || te.Reporter != "http" {
				t.Fatalf("Publish() error = %v, want http TransportError", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// --- Influx ---

type fakeWriter struct {
	readings  []influxdb.ReadingPoint
	waterings []influxdb.WateringPoint
}

func (f *fakeWriter) WriteReading(p influxdb.ReadingPoint)   { f.readings = append(f.readings, p) }
func (f *fakeWriter) WriteWatering(p influxdb.WateringPoint) { f.waterings = append(f.waterings, p) }

func TestInflux_WritesOncePerCycleAndWatering(t *testing.T) {
	w := &fakeWriter{}
	r := reporter.NewInflux(w, "greenhouse")
	ctx := context.Background()

	first := watering("Peace Lily", testNow)
	_ = r.Publish(ctx, snapshot(1, first))
	_ = r.Publish(ctx, snapshot(1, first))
	_ = r.Publish(ctx, snapshot(2, first))
	_ = r.Publish(ctx, snapshot(2, first, watering("Basil", testNow.Add(time.Minute))))

	if len(w.readings) != 2 {
		t.Errorf("readings written = %d, want 2", len(w.readings))
	}
	if len(w.waterings) != 2 {
		t.Fatalf("waterings written = %d, want 2", len(w.waterings))
	}

	rp := w.readings[0]
	if rp.Site != "greenhouse" || rp.SoilMoisturePct != 28 || rp.WaterTankPct != 66.7 {
		t.Errorf("reading point = %+v", rp)
	}
	wp := w.waterings[0]
	if wp.Plant != "Peace Lily" || wp.Duration != 3*time.Second || wp.WaterML != 300 || !wp.Success {
		t.Errorf("watering point = %+v", wp)
	}
	if w.waterings[1].Plant != "Basil" {
		t.Errorf("second watering = %q, want Basil", w.waterings[1].Plant)
	}
}

func TestInflux_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &fakeWriter{}
	err := reporter.NewInflux(w, "s").Publish(ctx, snapshot(1))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() error = %v, want context.Canceled", err)
	}
	if len(w.readings) != 0 {
		t.Error("reading written with cancelled context")
	}
}

// --- Hub ---

type fakeBroadcaster struct{ channels []string }

func (f *fakeBroadcaster) Broadcast(channel string, _ any) { f.channels = append(f.channels, channel) }

func TestHub_BroadcastsStatusAndNewWaterings(t *testing.T) {
	b := &fakeBroadcaster{}
	h := reporter.NewHub(b)

	s := snapshot(1, watering("Peace Lily", testNow))
	_ = h.Publish(context.Background(), s)
	_ = h.Publish(context.Background(), s)

	want := []string{reporter.ChannelWateringFinished, reporter.ChannelStatusPublished, reporter.ChannelStatusPublished}
	if len(b.channels) != len(want) {
		t.Fatalf("channels = %v, want %v", b.channels, want)
	}
	for i := range want {
		if b.channels[i] != want[i] {
			t.Errorf("channel[%d] = %q, want %q", i, b.channels[i], want[i])
		}
	}
}

// --- Guarded ---

func fastRetry(n uint64) config.RetryConfig {
	return config.RetryConfig{MaxRetries: n, InitialInterval: 1, MaxInterval: 2}
}

func TestGuarded_RetriesThenSucceeds(t *testing.T) {
	next := &flakyReporter{fails: 2, err: errors.New("timeout")}
	g := reporter.NewGuarded("http", next, fastRetry(3), config.BreakerConfig{ConsecutiveFailures: 5}, nil)

	if err := g.Publish(context.Background(), snapshot(1)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if next.count() != 3 {
		t.Errorf("attempts = %d, want 3", next.count())
	}
	if g.State() != "closed" {
		t.Errorf("State() = %q, want closed", g.State())
	}
}

func TestGuarded_RetriesAreBounded(t *testing.T) {
	next := &flakyReporter{fails: -1, err: errors.New("down")}
	g := reporter.NewGuarded("http", next, fastRetry(2), config.BreakerConfig{ConsecutiveFailures: 5}, nil)

	err := g.Publish(context.Background(), snapshot(1))
	var te *reporter.TransportError
	if !errors.As(err, &te) || te.Reporter != "http" {
		t.Fatalf("Publish() error = %v, want http TransportError", err)
	}
	if next.count() != 3 {
		t.Errorf("attempts = %d, want 3", next.count())
	}
}

func TestGuarded_BreakerOpensAndFailsFast(t *testing.T) {
	next := &flakyReporter{fails: -1, err: errors.New("down")}
	g := reporter.NewGuarded("mqtt", next, fastRetry(0),
		config.BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: 60}, nil)
	ctx := context.Background()

	_ = g.Publish(ctx, snapshot(1))
	_ = g.Publish(ctx, snapshot(2))
	if g.State() != "open" {
		t.Fatalf("State() = %q after 2 failures, want open", g.State())
	}

	err := g.Publish(ctx, snapshot(3))
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Publish() error = %v, want ErrOpenState", err)
	}
	if next.count() != 2 {
		t.Errorf("outlet calls = %d, want 2 (open breaker must not call through)", next.count())
	}
	if g.Name() != "mqtt" {
		t.Errorf("Name() = %q", g.Name())
	}
}

func TestGuarded_CancelDoesNotTrip(t *testing.T) {
	next := &flakyReporter{fails: -1, err: context.Canceled}
	g := reporter.NewGuarded("http", next, fastRetry(3), config.BreakerConfig{ConsecutiveFailures: 1}, nil)

	err := g.Publish(context.Background(), snapshot(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish() error = %v, want context.Canceled", err)
	}
	if next.count() != 1 {
		t.Errorf("attempts = %d, want 1 (cancellation is not retried)", next.count())
	}
	if g.State() != "closed" {
		t.Errorf("State() = %q, want closed", g.State())
	}
}

// --- commands ---

type fakeSubscriber struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, h mqtt.MessageHandler) error {
	f.topic, f.qos, f.handler = topic, qos, h
	return nil
}

type fakeWaterer struct {
	calls chan int
}

func (f *fakeWaterer) WaterNow(_ context.Context, position int) (scheduler.Outcome, error) {
	f.calls <- position
	return scheduler.Outcome{Plant: plant.Plant{Name: "Basil", Position: position}}, nil
}

func TestSubscribeCommands(t *testing.T) {
	sub := &fakeSubscriber{}
	w := &fakeWaterer{calls: make(chan int, 1)}
	topics := mqtt.Topics{Site: "greenhouse"}

	if err := reporter.SubscribeCommands(context.Background(), sub, topics, 1, w, nil); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	if sub.topic != topics.Command(reporter.CommandWater) || sub.qos != 1 {
		t.Fatalf("subscribed to %q qos %d", sub.topic, sub.qos)
	}

	if err := sub.handler(sub.topic, []byte(`{"position":2}`)); err != nil {
		t.Fatalf("handler() error = %v", err)
	}
	select {
	case pos := <-w.calls:
		if pos != 2 {
			t.Errorf("WaterNow position = %d, want 2", pos)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaterNow not called")
	}
}

func TestSubscribeCommands_InvalidPayload(t *testing.T) {
	sub := &fakeSubscriber{}
	w := &fakeWaterer{calls: make(chan int, 1)}
	_ = reporter.SubscribeCommands(context.Background(), sub, mqtt.Topics{}, 0, w, nil)

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `water please`},
		{"missing position", `{}`},
		{"negative position", `{"position":-1}`},
		{"wrong type", `{"position":"two"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sub.handler(sub.topic, []byte(tt.payload))
			if !errors.Is(err, reporter.ErrInvalidCommand) {
				t.Errorf("handler(%s) error = %v, want ErrInvalidCommand", tt.payload, err)
			}
		})
	}
	select {
	case pos := <-w.calls:
		t.Errorf("WaterNow(%d) called for invalid payload", pos)
	default:
	}
}
