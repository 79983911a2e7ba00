// Package metrics exposes the appliance's Prometheus metrics.
//
// Metrics implements monitor.Recorder, so the monitoring loop feeds it
// directly; Handler serves the registry at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/planter-core/internal/hardware"
	"github.com/nerrad567/planter-core/internal/scheduler"
)

const namespace = "planter"

// Metrics holds the collectors for one appliance.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	cycleDuration   prometheus.Histogram
	sensor          *prometheus.GaugeVec
	sensorFaults    *prometheus.CounterVec
	waterings       *prometheus.CounterVec
	pumpSeconds     *prometheus.CounterVec
	pumpActive      *prometheus.GaugeVec
	publishFailures prometheus.Counter
}

// New creates and registers all collectors, plus the Go runtime and
// process collectors. site is attached to every series as a const label.
func New(site string) *Metrics {
	labels := prometheus.Labels{"site": site}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Completed monitoring cycles.", ConstLabels: labels,
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds",
			Help:        "Wall time of one monitoring cycle, watering included.",
			ConstLabels: labels,
			Buckets:     []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		sensor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sensor_value",
			Help: "Latest sensor reading by quantity.", ConstLabels: labels,
		}, []string{"quantity"}),
		sensorFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sensor_faults_total",
			Help: "Sub-reads that failed and fell back to defaults.", ConstLabels: labels,
		}, []string{"sensor"}),
		waterings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "waterings_total",
			Help: "Watering attempts by plant, trigger and result.", ConstLabels: labels,
		}, []string{"plant", "trigger", "result"}),
		pumpSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pump_run_seconds_total",
			Help: "Commanded pump run time of successful waterings.", ConstLabels: labels,
		}, []string{"pump"}),
		pumpActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pump_active",
			Help: "1 while the pump is running.", ConstLabels: labels,
		}, []string{"pump"}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "publish_failures_total",
			Help: "Status publishes that failed on at least one outlet.", ConstLabels: labels,
		}),
	}

	m.registry.MustRegister(
		m.cycles, m.cycleDuration, m.sensor, m.sensorFaults,
		m.waterings, m.pumpSeconds, m.pumpActive, m.publishFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, id := range []int{hardware.Pump1, hardware.Pump2} {
		m.pumpActive.WithLabelValues(strconv.Itoa(id)).Set(0)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CycleCompleted records one finished cycle and its reading.
func (m *Metrics) CycleCompleted(d time.Duration, r hardware.Reading) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())

	m.sensor.WithLabelValues("temperature_celsius").Set(r.TemperatureC)
	m.sensor.WithLabelValues("humidity_percent").Set(r.HumidityPct)
	m.sensor.WithLabelValues("soil_moisture_percent").Set(r.SoilMoisturePct)
	m.sensor.WithLabelValues("light_lux").Set(r.LightLux)
	m.sensor.WithLabelValues("water_tank_percent").Set(r.WaterTankPct())

	for _, f := range r.Faults {
		m.sensorFaults.WithLabelValues(f).Inc()
	}
}

// Watered records one watering attempt.
func (m *Metrics) Watered(o scheduler.Outcome) {
	result := "success"
	switch {
	case scheduler.IsCancelled(o):
		result = "cancelled"
	case !o.OK():
		result = "failure"
	}
	m.waterings.WithLabelValues(o.Plant.Name, string(o.Trigger), result).Inc()
	if o.OK() {
		m.pumpSeconds.WithLabelValues(strconv.Itoa(o.PumpID)).Add(o.Duration.Seconds())
	}
}

// PumpChanged mirrors live pump state.
func (m *Metrics) PumpChanged(s scheduler.PumpStatus) {
	m.pumpActive.WithLabelValues(strconv.Itoa(hardware.Pump1)).Set(boolGauge(s.Pump1Active))
	m.pumpActive.WithLabelValues(strconv.Itoa(hardware.Pump2)).Set(boolGauge(s.Pump2Active))
}

// PublishFailed counts a failed status publish.
func (m *Metrics) PublishFailed() { m.publishFailures.Inc() }

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
