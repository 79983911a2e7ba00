package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/planter-core/internal/monitor"
)

// DataPath is where the web interface accepts appliance pushes.
const DataPath = "/api/raspberry-pi/data"

const defaultHTTPTimeout = 10 * time.Second

// HTTP posts each snapshot to the web interface in the payload shape it
// has always accepted.
type HTTP struct {
	url    string
	client *http.Client
}

// NewHTTP creates an HTTP reporter for the web interface at endpoint.
func NewHTTP(endpoint string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTP{
		url:    strings.TrimRight(endpoint, "/") + DataPath,
		client: &http.Client{Timeout: timeout},
	}
}

// URL returns the push URL.
func (h *HTTP) URL() string { return h.url }

type webSensorData struct {
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	SoilMoisture *float64 `json:"soil_moisture"`
	Light        *float64 `json:"light"`
	WaterLevel   float64  `json:"water_level"`
}

type webPumpStatus struct {
	Pump1Active bool       `json:"pump1_active"`
	Pump2Active bool       `json:"pump2_active"`
	LastWatered *time.Time `json:"last_watered"`
}

type webPayload struct {
	Timestamp   time.Time     `json:"timestamp"`
	SensorData  webSensorData `json:"sensor_data"`
	PlantStatus []string      `json:"plant_status"`
	PumpStatus  webPumpStatus `json:"pump_status"`
}

func newWebPayload(s monitor.StatusSnapshot) webPayload {
	p := webPayload{
		Timestamp:   s.Timestamp,
		PlantStatus: s.PlantsNeedingWater,
		PumpStatus: webPumpStatus{
			Pump1Active: s.Pumps.Pump1Active,
			Pump2Active: s.Pumps.Pump2Active,
			LastWatered: s.Pumps.LastWatered,
		},
	}
	if p.PlantStatus == nil {
		p.PlantStatus = []string{}
	}
	if r := s.LastReading; r != nil {
		p.Timestamp = r.Timestamp
		p.SensorData = webSensorData{
			Temperature:  &r.TemperatureC,
			Humidity:     &r.HumidityPct,
			SoilMoisture: &r.SoilMoisturePct,
			Light:        &r.LightLux,
			WaterLevel:   r.WaterTankPct(),
		}
	}
	return p
}

// Publish implements monitor.Reporter.
func (h *HTTP) Publish(ctx context.Context, s monitor.StatusSnapshot) error {
	body, err := json.Marshal(newWebPayload(s))
	if err != nil {
		return wrap("http", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return wrap("http", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return wrap("http", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for keep-alive

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return wrap("http", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	}
	return nil
}
