// Package metrics exposes Prometheus instruments for the indicator daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/setpoint-indicator/internal/logic"
)

// Each render writes all three LED lines.
const ledLinesPerRender = 3

// Metrics holds the daemon's Prometheus instruments. All methods are safe
// to call on a nil receiver, so tests can pass a nil *Metrics.
type Metrics struct {
	registry      *prometheus.Registry
	regionChanges *prometheus.CounterVec
	ledWrites     prometheus.Counter
	temperature   prometheus.Gauge
	setpoint      prometheus.Gauge
	region        prometheus.Gauge
	mqttConnected prometheus.Gauge
}

// New creates the instrument set on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		regionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_region_changes_total",
			Help: "Total count of LED renders by region.",
		}, []string{"region"}),
		ledWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indicator_led_writes_total",
			Help: "Total GPIO line writes from region renders.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indicator_temperature_f",
			Help: "Last reported temperature in Fahrenheit.",
		}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indicator_setpoint_f",
			Help: "Last reported setpoint in Fahrenheit.",
		}),
		region: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indicator_region",
			Help: "Current region as an index (0 BELOW through 4 ABOVE).",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indicator_mqtt_connected",
			Help: "Whether the MQTT connection is up (0 or 1).",
		}),
	}

	m.registry.MustRegister(
		m.regionChanges,
		m.ledWrites,
		m.temperature,
		m.setpoint,
		m.region,
		m.mqttConnected,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReading records the latest controller reading.
func (m *Metrics) ObserveReading(tempF, setpointF float64) {
	if m == nil {
		return
	}
	m.temperature.Set(tempF)
	m.setpoint.Set(setpointF)
}

// Render records one LED render of the pattern for region.
func (m *Metrics) Render(region logic.Region) {
	if m == nil {
		return
	}
	m.regionChanges.WithLabelValues(region.String()).Inc()
	m.ledWrites.Add(ledLinesPerRender)
	m.region.Set(float64(region))
}

// SetRegion sets the region gauge without counting a render.
// Called once at startup to report the boot state.
func (m *Metrics) SetRegion(region logic.Region) {
	if m == nil {
		return
	}
	m.region.Set(float64(region))
}

// SetMQTTConnected sets the connection gauge.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.mqttConnected.Set(1)
	} else {
		m.mqttConnected.Set(0)
	}
}
